package spec

import (
	"encoding/json"

	"github.com/nawi-hub/proteuslib/errs"
	"gopkg.in/yaml.v3"
)

// GetSweepSettingByYAML
// 會讀取 YAML 設定、初始化各子設定並執行基本檢查後回傳。
func GetSweepSettingByYAML(data []byte) (*SweepSetting, error) {
	ss := &SweepSetting{}
	if err := yaml.Unmarshal(data, ss); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	// 設定檔初始化
	if err := ss.init(); err != nil {
		return nil, errs.Wrap(err, "sweep setting initialized err")
	}

	return ss, nil
}

// GetSweepSettingByJSON
// 會讀取 Json 設定、初始化各子設定並執行基本檢查後回傳
func GetSweepSettingByJSON(data []byte) (*SweepSetting, error) {
	ss := &SweepSetting{}
	if err := json.Unmarshal(data, ss); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}

	// 設定檔初始化
	if err := ss.init(); err != nil {
		return nil, errs.Wrap(err, "sweep setting initialized err")
	}

	return ss, nil
}
