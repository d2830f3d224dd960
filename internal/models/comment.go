package models

import (
	"strconv"
	"strings"
)

// CommentRecord 评论记录
// 结构体可比较,四元组本身就是去重键
type CommentRecord struct {
	Username       string `json:"username"`
	Text           string `json:"comment_text"`
	Level          int    `json:"comment_level"`
	ParentUsername string `json:"parent_comment"`
}

// Valid 用户名和评论内容都不为空才算有效记录
func (c CommentRecord) Valid() bool {
	return c.Username != "" && c.Text != "" && c.Level >= 1
}

// ProfileInfo 用户主页信息
type ProfileInfo struct {
	Bio      string   `json:"bio"`
	Email    string   `json:"email"`
	WhatsApp string   `json:"whatsapp"`
	Phone    string   `json:"phone"`
	Links    []string `json:"links"`
}

// LinkSeparator 导出CSV时链接的分隔符,不做转义
const LinkSeparator = "|"

// ResultColumns CSV列,顺序固定
var ResultColumns = []string{
	"hashtag",
	"post_url",
	"post_author",
	"commenter_username",
	"comment_text",
	"comment_level",
	"parent_comment",
	"commenter_bio",
	"commenter_email",
	"commenter_whatsapp",
	"commenter_phone",
	"commenter_links",
}

// ResultRow 一条评论与评论者主页信息拼接后的输出行
type ResultRow struct {
	Hashtag           string
	PostURL           string
	PostAuthor        string
	CommenterUsername string
	CommentText       string
	CommentLevel      int
	ParentComment     string
	CommenterBio      string
	CommenterEmail    string
	CommenterWhatsApp string
	CommenterPhone    string
	CommenterLinks    []string
}

// NewResultRow 组装输出行, profile为nil时主页相关字段留空
func NewResultRow(hashtag, postURL, postAuthor string, comment CommentRecord, profile *ProfileInfo) ResultRow {
	row := ResultRow{
		Hashtag:           hashtag,
		PostURL:           postURL,
		PostAuthor:        postAuthor,
		CommenterUsername: comment.Username,
		CommentText:       comment.Text,
		CommentLevel:      comment.Level,
		ParentComment:     comment.ParentUsername,
	}
	if profile != nil {
		row.CommenterBio = profile.Bio
		row.CommenterEmail = profile.Email
		row.CommenterWhatsApp = profile.WhatsApp
		row.CommenterPhone = profile.Phone
		row.CommenterLinks = profile.Links
	}
	return row
}

// Record 按 ResultColumns 的顺序输出字段
func (r ResultRow) Record() []string {
	return []string{
		r.Hashtag,
		r.PostURL,
		r.PostAuthor,
		r.CommenterUsername,
		r.CommentText,
		strconv.Itoa(r.CommentLevel),
		r.ParentComment,
		r.CommenterBio,
		r.CommenterEmail,
		r.CommenterWhatsApp,
		r.CommenterPhone,
		strings.Join(r.CommenterLinks, LinkSeparator),
	}
}
