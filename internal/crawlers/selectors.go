package crawlers

import "fmt"

// Selectors 页面选择器
//
// TikTok 的类名带哈希且经常变化, 所有选择器集中在这里并可由配置文件覆盖。
// 列表类选择器按顺序尝试, 第一个命中的生效。
type Selectors struct {
	// VideoLinkPattern 视频链接 href 中包含的片段
	VideoLinkPattern string `mapstructure:"video_link_pattern"`

	// CommentContainers 评论容器, 每轮取第一个有匹配的模式
	CommentContainers []string `mapstructure:"comment_containers"`
	// CommentUsernames 容器内的用户名, 取第一个非空结果
	CommentUsernames []string `mapstructure:"comment_usernames"`
	// CommentLevelFormat 评论层级探测, %d 取 1..MaxCommentLevel
	CommentLevelFormat string `mapstructure:"comment_level_format"`
	MaxCommentLevel    int    `mapstructure:"max_comment_level"`
	// CommentTextFallbacks 无层级标记时的正文选择器, 视为一级评论
	CommentTextFallbacks []string `mapstructure:"comment_text_fallbacks"`
	// ParentContainer 回复的父评论容器(前序兄弟节点)
	ParentContainer string `mapstructure:"parent_container"`
	// ParentUsername 父评论容器内的用户链接
	ParentUsername string `mapstructure:"parent_username"`
	// CommentPanels 评论区自身带滚动条时的滚动目标
	CommentPanels []string `mapstructure:"comment_panels"`

	// ProfileBio 个人主页简介
	ProfileBio string `mapstructure:"profile_bio"`

	// Captcha 验证码容器
	Captcha []string `mapstructure:"captcha"`
}

// DefaultSelectors 默认选择器
func DefaultSelectors() Selectors {
	return Selectors{
		VideoLinkPattern: "/video/",

		CommentContainers: []string{
			`div[class*="DivCommentContentWrapper"]`,
			`div[class*="css-1bkazzl-DivCommentContentWrapper"]`,
			`div[class*="DivCommentObjectWrapper"]`,
		},
		CommentUsernames: []string{
			`div[class*="DivUsernameContentWrapper"] a[href*="/@"]`,
			`a[class="link-diy-focus"]`,
			`div[class*="css-1c5c5rm-DivCommentHeaderWrapper"] a`,
			`div[class*="DivCardAvatar"] p[class*="user-name"]`,
			`div[class*="DivCardAvatar"] h4[class*="UserTitle"] p`,
			`div[class*="DivCardAvatar"] a[title]`,
		},
		CommentLevelFormat: `span[data-e2e="comment-level-%d"]`,
		MaxCommentLevel:    9,
		CommentTextFallbacks: []string{
			`span[class*="TUXText"][class*="StyledTUXText"]`,
			`div[class*="DivCommentContentSplitWrapper"] span[class*="TUXText"]`,
			`p[class*="TUXText TUXText--tiktok-sans TUXText--weight-medium"]`,
		},
		ParentContainer: `div[class*="DivCommentContentWrapper"]`,
		ParentUsername:  `div[class*="DivUsernameContentWrapper"] a[href*="/@"]`,
		CommentPanels: []string{
			`[data-e2e="comment-list"]`,
			`div[class*="DivCommentListContainer"]`,
		},

		ProfileBio: `[data-e2e="user-bio"]`,

		Captcha: []string{
			`iframe[src*="captcha"]`,
			`.captcha_verify_container`,
			`.captcha_verify_img_slide`,
			`[class*="secsdk-captcha"]`,
			`[id*="captcha"]`,
		},
	}
}

// LevelSelector 第 level 级评论正文选择器
func (s Selectors) LevelSelector(level int) string {
	return fmt.Sprintf(s.CommentLevelFormat, level)
}

// WithDefaults 用默认值补齐未配置的字段
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	if s.VideoLinkPattern == "" {
		s.VideoLinkPattern = d.VideoLinkPattern
	}
	if len(s.CommentContainers) == 0 {
		s.CommentContainers = d.CommentContainers
	}
	if len(s.CommentUsernames) == 0 {
		s.CommentUsernames = d.CommentUsernames
	}
	if s.CommentLevelFormat == "" {
		s.CommentLevelFormat = d.CommentLevelFormat
	}
	if s.MaxCommentLevel <= 0 {
		s.MaxCommentLevel = d.MaxCommentLevel
	}
	if len(s.CommentTextFallbacks) == 0 {
		s.CommentTextFallbacks = d.CommentTextFallbacks
	}
	if s.ParentContainer == "" {
		s.ParentContainer = d.ParentContainer
	}
	if s.ParentUsername == "" {
		s.ParentUsername = d.ParentUsername
	}
	if len(s.CommentPanels) == 0 {
		s.CommentPanels = d.CommentPanels
	}
	if s.ProfileBio == "" {
		s.ProfileBio = d.ProfileBio
	}
	if len(s.Captcha) == 0 {
		s.Captcha = d.Captcha
	}
	return s
}
