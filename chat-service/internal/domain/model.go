package domain

import "time"

// PrincipalModel is the GORM model for the users table.
type PrincipalModel struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	DisplayName string    `gorm:"type:varchar(100);not null"`
	Role        string    `gorm:"type:varchar(20);not null;default:'student'"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (PrincipalModel) TableName() string {
	return "users"
}

func (m *PrincipalModel) ToDomain() *Principal {
	return &Principal{
		ID:          m.ID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Role:        Role(m.Role),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func PrincipalToModel(p *Principal) *PrincipalModel {
	return &PrincipalModel{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        string(p.Role),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// MessageModel is the GORM model for the messages table. Rows go away with
// either participant.
type MessageModel struct {
	ID         string     `gorm:"type:varchar(36);primaryKey"`
	SenderID   string     `gorm:"type:varchar(36);not null;index:idx_messages_pair,priority:1"`
	ReceiverID string     `gorm:"type:varchar(36);not null;index:idx_messages_pair,priority:2;index:idx_messages_unread,priority:1"`
	Content    string     `gorm:"type:text;not null"`
	IsRead     bool       `gorm:"not null;default:false;index:idx_messages_unread,priority:2"`
	ReadAt     *time.Time `gorm:"precision:6"`
	CreatedAt  time.Time  `gorm:"not null;precision:6;index"`

	Sender   *PrincipalModel `gorm:"foreignKey:SenderID;references:ID;constraint:OnDelete:CASCADE"`
	Receiver *PrincipalModel `gorm:"foreignKey:ReceiverID;references:ID;constraint:OnDelete:CASCADE"`
}

func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts the row; participants are attached only when loaded.
func (m *MessageModel) ToDomain() *Message {
	msg := &Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
		ReadAt:     m.ReadAt,
		CreatedAt:  m.CreatedAt,
	}
	if m.Sender != nil {
		msg.Sender = m.Sender.ToDomain()
	}
	if m.Receiver != nil {
		msg.Receiver = m.Receiver.ToDomain()
	}
	return msg
}

func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		IsRead:     msg.IsRead,
		ReadAt:     msg.ReadAt,
		CreatedAt:  msg.CreatedAt,
	}
}
