package extractor

import (
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/wisdark/observer-ward/internal/pkg/utils"
)

// 不转义 < > &，与常见 JSON 序列化输出一致
var jsonWriteOptions = &oj.Options{Sort: true, HTMLUnsafe: true}

// extractJSON 每个结果元素以 JSON 形式写入集合，字符串 a 写为 "a"
// group 不参与 JSON 提取，路径选中的元素全部写入
func (c *Compiled) extractJSON(j *JSONPath, corpus string) utils.StringSet {
	result := utils.NewStringSet()

	data, err := oj.ParseString(corpus)
	if err != nil {
		return result
	}

	for _, path := range j.JSON {
		expr, err := jp.ParseString(path)
		if err != nil {
			continue
		}
		for _, v := range expr.Get(data) {
			result.Add(c.fold(oj.JSON(v, jsonWriteOptions)))
		}
	}
	return result
}
