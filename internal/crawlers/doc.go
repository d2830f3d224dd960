// Package crawlers 实现TikTok页面上的各个采集步骤
//
// # 概述
//
// 所有组件都只依赖 browser.Driver 接口, 页面解析基于 goquery 完成,
// 随机等待统一通过 Jitter 注入, 测试时可替换为记录型的 SleepFunc。
//
// # 核心组件
//
// ## Collector
//
// 打开话题页并滚动收集视频URL。按发现顺序去重,
// 每收集 BatchSize 个休息一次, 连续无新增时刷新页面,
// 累计停滞次数达到 MaxRetries 后结束。
//
//	c := NewCollector(driver, jitter, selectors, logger)
//	res, err := c.Collect(ctx, "skincare", DefaultCollectOptions())
//
// ## Paginator
//
// 打开单个视频, 等待评论容器出现后反复滚动评论面板并解析评论。
// 终止条件:
//   - 达到 MaxComments (StateComplete)
//   - 连续 MaxNoGrowth 轮没有新增 (StateExhausted)
//   - 滚动轮数达到 MaxScrollAttempts (StateExhausted)
//   - 当前URL不再是打开的视频 (StateDrifted)
//
// 已提取的评论在任何终止状态下都会返回。
//
//	p := NewPaginator(driver, jitter, selectors, DefaultPaginateOptions(), logger)
//	res, err := p.Paginate(ctx, videoURL, 50)
//
// ## ProfileExtractor
//
// 访问评论者主页, 读取简介和主页中的链接, 并从简介中提取联系方式。
//
// ## Login
//
// 使用账号密码登录, 出现验证码时轮询等待人工完成。
//
// # 选择器
//
// TikTok的class名经常变化, 所有选择器集中在 Selectors 中,
// 可通过配置文件的 selectors 段覆盖, 未配置的字段使用 DefaultSelectors。
package crawlers
