package model

import (
	"strings"
	"unicode/utf8"
)

// ContentType tags what part of a report a chunk holds
type ContentType string

const (
	ContentTarget  ContentType = "target"
	ContentTitle   ContentType = "title"
	ContentSummary ContentType = "summary"
	ContentBody    ContentType = "content"
)

// MetadataContentType is the chunk metadata key holding the ContentType
const MetadataContentType = "content_type"

// targetKeywords mark goals and key tasks of a government work report
var targetKeywords = []string{
	"主要目标", "工作目标", "发展目标", "重点任务", "主要任务",
	"工作重点", "重点工作", "重点项目", "重大项目", "重大工程",
	"产业发展", "经济发展", "社会发展", "民生改善", "生态环境",
}

// ContentTypes lists every content type in reporting order
func ContentTypes() []ContentType {
	return []ContentType{ContentTarget, ContentTitle, ContentSummary, ContentBody}
}

// ClassifyContent tags text, first match wins: target keywords, short text
// with a Chinese numeral (section headings like 一、), summary words, body.
func ClassifyContent(text string) ContentType {
	for _, keyword := range targetKeywords {
		if strings.Contains(text, keyword) {
			return ContentTarget
		}
	}
	if utf8.RuneCountInString(text) < 100 && strings.ContainsAny(text, "一二三四五六七八九十") {
		return ContentTitle
	}
	if strings.Contains(text, "摘要") || strings.Contains(text, "概述") || strings.Contains(text, "总体") {
		return ContentSummary
	}
	return ContentBody
}

// ContentTypeOf returns the content type stored in the chunk metadata,
// chunks ingested without one count as body text
func ContentTypeOf(chunk *Chunk) ContentType {
	if value, ok := chunk.Metadata.String(MetadataContentType); ok && value != "" {
		return ContentType(value)
	}
	return ContentBody
}
