package model

import "time"

type ActiveUser struct {
	UserID   string     `json:"userId"`
	Username string     `json:"userName"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
	Online   bool       `json:"isOnline"`
}

// GroupChatStatus summarises a group's visible activity.
type GroupChatStatus struct {
	GroupID       string
	TotalMessages int64
	TodayMessages int64
	LastMessage   *ChatMessage
	LastActivity  *time.Time
	ActiveUsers   []ActiveUser
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type UserCount struct {
	UserID             string `json:"userPublicId"`
	MessageCount       int64  `json:"messageCount"`
	LastMessageDaysAgo int64  `json:"lastMessageDaysAgo"`
}

// MessageStatistics counts every message of a group, deleted ones included.
type MessageStatistics struct {
	GroupID         string
	TotalMessages   int64
	TextMessages    int64
	ImageMessages   int64
	FileMessages    int64
	SystemMessages  int64
	DeletedMessages int64
	EditedMessages  int64
	FirstMessageAt  *time.Time
	LastMessageAt   *time.Time
	DailyCounts     []DailyCount
	UserCounts      []UserCount
}
