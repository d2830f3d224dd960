package crawlers

// CrawlState 滚动采集循环的状态
type CrawlState int

const (
	StateScanning  CrawlState = iota // 正常扫描
	StateStagnant                    // 本轮没有新增
	StateExhausted                   // 停滞次数或尝试次数用尽
	StateDrifted                     // 页面URL发生漂移
	StateComplete                    // 达到目标数量
)

var stateNames = map[CrawlState]string{
	StateScanning:  "scanning",
	StateStagnant:  "stagnant",
	StateExhausted: "exhausted",
	StateDrifted:   "drifted",
	StateComplete:  "complete",
}

// String 实现 fmt.Stringer
func (s CrawlState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal 是否为终止状态
func (s CrawlState) Terminal() bool {
	return s == StateExhausted || s == StateDrifted || s == StateComplete
}
