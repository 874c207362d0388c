package cache

import (
	"strconv"

	"github.com/rushteam/catalogrec/pkg/utils"
)

// KeyPrefix 是推荐缓存 key 的前缀。
const KeyPrefix = "reco"

// Key 由 (block, user id, product id, context type, context params) 确定性地计算缓存 key。
// params 的 key 顺序与数值类型（int/float64）不影响结果。
func Key(blockName, userID, productID, contextType string, params map[string]any) string {
	h := utils.StructuralHash(blockName, userID, productID, contextType, params)
	return KeyPrefix + ":" + blockName + ":" + strconv.FormatUint(h, 16)
}
