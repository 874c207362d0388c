package utils

import "strings"

// Label 解释候选的来源：哪个算法召回、在聚合中的位置、被哪个节点处理过。
// 随候选一起写入缓存，调用方可直接展示或上报。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // strategy / aggregate / filter ...
}

// MergeLabel 合并同名 Label：Value 以 '|' 累积，Source 以 ',' 累积，已出现过的片段不重复追加。
// 去重合并多个算法返回的同一商品时，strategy 标签因此记录全部命中的算法。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}
	return Label{
		Value:  appendPart(existing.Value, incoming.Value, "|"),
		Source: appendPart(existing.Source, incoming.Source, ","),
	}
}

func appendPart(list, part, sep string) string {
	switch {
	case part == "":
		return list
	case list == "":
		return part
	}
	for _, p := range strings.Split(list, sep) {
		if p == part {
			return list
		}
	}
	return list + sep + part
}
