package model

import "time"

type HubStats struct {
	TotalChannels    int            `json:"total_channels"`
	GroupChannels    int            `json:"group_channels"`
	UserChannels     int            `json:"user_channels"`
	TotalConnections int            `json:"total_connections"`
	Delivered        uint64         `json:"delivered"`
	Dropped          uint64         `json:"dropped"`
	Uptime           time.Duration  `json:"uptime"`
	Channels         []ChannelStats `json:"channels,omitempty"`
}

type ChannelStats struct {
	Key         string `json:"key"`
	Subscribers int    `json:"subscribers"`
	Backlog     int    `json:"backlog"`
}
