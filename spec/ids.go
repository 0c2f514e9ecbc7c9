package spec

// SID 是掃描設定（SweepSetting）在 Catalog 內的唯一識別碼。
type SID uint

// FlowsheetKey 指向 flowsheet registry 內註冊的模型 builder。
type FlowsheetKey string
