package browser

import (
	"fmt"
	"math/rand"
)

const userAgentTemplate = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36"

// Chrome主版本号随机范围
const (
	minChromeMajor = 90
	maxChromeMajor = 110
)

// RandomUserAgent 生成随机Chrome版本的User-Agent, rng为nil时使用全局随机源
func RandomUserAgent(rng *rand.Rand) string {
	span := maxChromeMajor - minChromeMajor + 1
	var n int
	if rng != nil {
		n = rng.Intn(span)
	} else {
		n = rand.Intn(span)
	}
	return fmt.Sprintf(userAgentTemplate, minChromeMajor+n)
}
