// Package models defines the data structures exchanged with the Raharpa Shopp
// backend and the transient client-side copies of them. Every mutable entity
// carries a server-assigned identifier; the client never treats an entity as
// existing until the backend has confirmed creation.
package models

import "time"

// Role distinguishes end users from admins in a session.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Session is the locally persisted login state for a user or admin.
// It is refreshed on activity and destroyed on logout or expiry.
type Session struct {
	SubjectID   string    `json:"subjectId"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	IssuedAt    time.Time `json:"issuedAt"`
	// Token is the backend-issued credential, when the backend hands one out.
	Token string `json:"token,omitempty"`
}

// LoginStatus is a user's backend-tracked presence.
type LoginStatus string

const (
	StatusOnline  LoginStatus = "online"
	StatusOffline LoginStatus = "offline"
)

// User represents an end user as reported by the backend.
type User struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	LoginStatus LoginStatus `json:"loginStatus"`
	LastLoginAt time.Time   `json:"lastLoginAt"`
	JoinedAt    time.Time   `json:"joinedAt"`
}

// ItemStatus is an item's availability state.
type ItemStatus string

const (
	ItemAvailable ItemStatus = "Available"
	ItemSoldOut   ItemStatus = "SoldOut"
)

// Item is a shop item managed by admins. Status transitions
// Available -> SoldOut through the send action, which records the recipient.
type Item struct {
	ID     string     `json:"id"`
	Code   string     `json:"code"`
	Price  int64      `json:"price"`
	Image  string     `json:"image,omitempty"`
	Status ItemStatus `json:"status"`
	Date   time.Time  `json:"date"`
	SentTo string     `json:"sentTo,omitempty"`
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderMethod tells how an order was placed.
type OrderMethod string

const (
	MethodManual  OrderMethod = "manual"
	MethodShoppie OrderMethod = "shoppie"
)

// OrderItem is one line of an order.
type OrderItem struct {
	ItemID    string `json:"itemId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// Order is a customer order as owned by the backend.
type Order struct {
	ID           string      `json:"id"`
	UserID       string      `json:"userId"`
	UserName     string      `json:"userName,omitempty"`
	Items        []OrderItem `json:"items"`
	TotalAmount  int64       `json:"totalAmount"`
	Status       OrderStatus `json:"status"`
	Method       OrderMethod `json:"method"`
	LocationLink string      `json:"locationLink,omitempty"`
	OrderDate    time.Time   `json:"orderDate"`
}

// Sender identifies which side of a chat wrote a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
)

// Message is a single chat message. FileURL and friends are set for
// messages carrying an attachment.
type Message struct {
	ID       string    `json:"id"`
	Sender   Sender    `json:"sender"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
	FileURL  string    `json:"fileUrl,omitempty"`
	FileName string    `json:"fileName,omitempty"`
	FileType string    `json:"fileType,omitempty"`
	Read     bool      `json:"read"`
}

// Chat is a conversation thread between one user and the admin side.
// It is created lazily by the backend on first contact.
type Chat struct {
	ChatID   string    `json:"chatId"`
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	Messages []Message `json:"messages"`
}

// DashboardStats is the read-only aggregate the backend computes per date.
type DashboardStats struct {
	Date          string  `json:"date"`
	TotalOrders   int     `json:"totalOrders"`
	TotalRevenue  int64   `json:"totalRevenue"`
	TotalUsers    int     `json:"totalUsers"`
	OnlineUsers   int     `json:"onlineUsers"`
	ItemsSent     int     `json:"itemsSent"`
	PendingOrders int     `json:"pendingOrders"`
	Orders        []Order `json:"orders,omitempty"`
}

// ReportRow is one entry of a monthly report.
type ReportRow struct {
	Date        string `json:"date"`
	OrderCount  int    `json:"orderCount"`
	Revenue     int64  `json:"revenue"`
	ItemsSold   int    `json:"itemsSold"`
	NewUsers    int    `json:"newUsers"`
	Description string `json:"description,omitempty"`
}

// Report is the backend's per-month aggregate view.
type Report struct {
	Month string      `json:"month"`
	Rows  []ReportRow `json:"rows"`
}

// ReportSummary condenses a month into headline numbers.
type ReportSummary struct {
	Month        string `json:"month"`
	TotalOrders  int    `json:"totalOrders"`
	TotalRevenue int64  `json:"totalRevenue"`
	TotalItems   int    `json:"totalItems"`
}

// AdminProfile is the cached admin account record.
type AdminProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}
