package model

// CutoutRecord 抠图结果记录
type CutoutRecord struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	URI       string `json:"uri"`
	SourceMD5 string `json:"source_md5"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Strategy  string `json:"strategy"`
	Timestamp int64  `json:"timestamp"`
}

// Capability 抠图能力探测结果
type Capability struct {
	Available bool   `json:"available"`
	Strategy  string `json:"strategy"`
	Remedy    string `json:"remedy,omitempty"`
}

// LiftResponse 抠图响应
type LiftResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    *CutoutRecord `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
}
