package spec

// OutputSetting 描述掃描要回收的單一模型輸出：
// Name 是結果表中的欄位名，Field 是 flowsheet 內部的取值路徑。
type OutputSetting struct {
	Name  string `yaml:"name"  json:"name"`
	Field string `yaml:"field" json:"field"`
}
