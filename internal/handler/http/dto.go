package httphandler

import (
	"time"

	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/samber/lo"
)

type SendMessageRequest struct {
	GroupID  string `json:"groupPublicId" validate:"required"`
	SenderID string `json:"senderPublicId" validate:"required"`
	Content  string `json:"content" validate:"required,max=1000"`
	Type     string `json:"type" validate:"omitempty,oneof=TEXT IMAGE FILE SYSTEM NOTIFICATION"`
}

type EditMessageRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type SearchRequest struct {
	GroupID        string     `json:"groupPublicId"`
	SenderID       string     `json:"senderPublicId"`
	Keyword        string     `json:"keyword" validate:"max=200"`
	Type           string     `json:"type" validate:"omitempty,oneof=TEXT IMAGE FILE SYSTEM NOTIFICATION"`
	SentAfter      *time.Time `json:"sentAfter"`
	SentBefore     *time.Time `json:"sentBefore"`
	IncludeDeleted bool       `json:"includeDeleted"`
}

type NotificationRequest struct {
	UserID           string `json:"userId" validate:"required"`
	Title            string `json:"title" validate:"required"`
	Content          string `json:"content" validate:"required"`
	NotificationType string `json:"notificationType"`
}

func (r *SearchRequest) toFilter() (model.SearchFilter, error) {
	f := model.SearchFilter{
		GroupID:        r.GroupID,
		SenderID:       r.SenderID,
		Keyword:        r.Keyword,
		SentAfter:      r.SentAfter,
		SentBefore:     r.SentBefore,
		IncludeDeleted: r.IncludeDeleted,
	}
	if r.Type != "" {
		kind, err := model.ParseMessageKind(r.Type)
		if err != nil {
			return f, err
		}
		f.Kind = &kind
	}
	return f, nil
}

type MessageResponse struct {
	PublicID  uuid.UUID         `json:"publicId"`
	GroupID   string            `json:"groupPublicId"`
	SenderID  string            `json:"senderPublicId"`
	Content   string            `json:"content"`
	Type      model.MessageKind `json:"type"`
	SentAt    time.Time         `json:"sentAt"`
	EditedAt  *time.Time        `json:"editedAt,omitempty"`
	DeletedAt *time.Time        `json:"deletedAt,omitempty"`
	IsEdited  bool              `json:"isEdited"`
	IsDeleted bool              `json:"isDeleted"`
	CanEdit   bool              `json:"canEdit"`
}

func toMessageResponse(m *model.ChatMessage, requester string) MessageResponse {
	return MessageResponse{
		PublicID:  m.PublicID,
		GroupID:   m.GroupID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      m.Kind,
		SentAt:    m.SentAt,
		EditedAt:  m.EditedAt,
		DeletedAt: m.DeletedAt,
		IsEdited:  m.IsEdited(),
		IsDeleted: m.Deleted,
		CanEdit:   requester != "" && requester == m.SenderID && !m.Deleted,
	}
}

func toMessageResponses(items []model.ChatMessage, requester string) []MessageResponse {
	return lo.Map(items, func(m model.ChatMessage, _ int) MessageResponse {
		return toMessageResponse(&m, requester)
	})
}

type PageResponse struct {
	Messages    []MessageResponse `json:"messages"`
	TotalCount  int64             `json:"totalCount"`
	CurrentPage int               `json:"currentPage"`
	PageSize    int               `json:"pageSize"`
	TotalPages  int               `json:"totalPages"`
	HasNext     bool              `json:"hasNext"`
	HasPrevious bool              `json:"hasPrevious"`
}

func toPageResponse(p model.Page[model.ChatMessage], requester string) PageResponse {
	return PageResponse{
		Messages:    toMessageResponses(p.Items, requester),
		TotalCount:  p.TotalCount,
		CurrentPage: p.Page,
		PageSize:    p.Size,
		TotalPages:  p.TotalPages(),
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}

type HistoryResponse struct {
	PageResponse
	LastMessageID   *uuid.UUID `json:"lastMessageId,omitempty"`
	LastMessageTime *time.Time `json:"lastMessageTime,omitempty"`
}

type SearchResponse struct {
	PageResponse
	SearchKeyword string `json:"searchKeyword,omitempty"`
}

type StatusResponse struct {
	GroupID       string             `json:"groupPublicId"`
	TotalMessages int64              `json:"totalMessages"`
	TodayMessages int64              `json:"todayMessages"`
	LastMessage   *MessageResponse   `json:"lastMessage,omitempty"`
	LastActivity  *time.Time         `json:"lastActivity,omitempty"`
	ActiveUsers   []model.ActiveUser `json:"activeUsers"`
}

func toStatusResponse(st *model.GroupChatStatus, requester string) StatusResponse {
	res := StatusResponse{
		GroupID:       st.GroupID,
		TotalMessages: st.TotalMessages,
		TodayMessages: st.TodayMessages,
		LastActivity:  st.LastActivity,
		ActiveUsers:   lo.Ternary(st.ActiveUsers == nil, []model.ActiveUser{}, st.ActiveUsers),
	}
	if st.LastMessage != nil {
		last := toMessageResponse(st.LastMessage, requester)
		res.LastMessage = &last
	}
	return res
}

type StatisticsResponse struct {
	GroupID         string             `json:"groupPublicId"`
	TotalMessages   int64              `json:"totalMessages"`
	TextMessages    int64              `json:"textMessages"`
	ImageMessages   int64              `json:"imageMessages"`
	FileMessages    int64              `json:"fileMessages"`
	SystemMessages  int64              `json:"systemMessages"`
	DeletedMessages int64              `json:"deletedMessages"`
	EditedMessages  int64              `json:"editedMessages"`
	FirstMessageAt  *time.Time         `json:"firstMessageAt,omitempty"`
	LastMessageAt   *time.Time         `json:"lastMessageAt,omitempty"`
	DailyCounts     []model.DailyCount `json:"dailyCounts"`
	UserCounts      []model.UserCount  `json:"userCounts"`
}

func toStatisticsResponse(st *model.MessageStatistics) StatisticsResponse {
	return StatisticsResponse{
		GroupID:         st.GroupID,
		TotalMessages:   st.TotalMessages,
		TextMessages:    st.TextMessages,
		ImageMessages:   st.ImageMessages,
		FileMessages:    st.FileMessages,
		SystemMessages:  st.SystemMessages,
		DeletedMessages: st.DeletedMessages,
		EditedMessages:  st.EditedMessages,
		FirstMessageAt:  st.FirstMessageAt,
		LastMessageAt:   st.LastMessageAt,
		DailyCounts:     st.DailyCounts,
		UserCounts:      st.UserCounts,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
