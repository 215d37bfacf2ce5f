package mintora

import "time"

// Account is a registered marketplace account.
type Account struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// NFT is a marketplace listing.
type NFT struct {
	ID           string    `json:"id"`
	CategoryID   string    `json:"categoryId"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Price        string    `json:"price"`
	Network      string    `json:"network"`
	OwnerAddress string    `json:"ownerAddress"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Order is a purchase of a listing.
type Order struct {
	ID            string    `json:"id"`
	OrderNumber   string    `json:"orderNumber"`
	BuyerAddress  string    `json:"buyerAddress"`
	NFTID         string    `json:"nftId"`
	Quantity      int       `json:"quantity"`
	TotalPrice    string    `json:"totalPrice"`
	PaymentMethod string    `json:"paymentMethod"`
	TransactionID string    `json:"transactionId,omitempty"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Transfer is the settlement record opened for a p2p order.
type Transfer struct {
	ID                     string     `json:"id"`
	OrderID                string     `json:"orderId"`
	TransferCode           string     `json:"transferCode"`
	SenderAddress          string     `json:"senderAddress"`
	PartnerAddress         string     `json:"partnerAddress"`
	PartnerPaymentMethodID string     `json:"partnerPaymentMethodId,omitempty"`
	Amount                 string     `json:"amount"`
	Network                string     `json:"network"`
	Status                 string     `json:"status"`
	PaymentCompletedAt     *time.Time `json:"paymentCompletedAt,omitempty"`
	AutoReleaseAt          *time.Time `json:"autoReleaseAt,omitempty"`
	AppealReason           string     `json:"appealReason,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// Webhook is a registered event subscription. The signing secret is only
// returned on creation.
type Webhook struct {
	ID             string     `json:"id"`
	AccountAddress string     `json:"accountAddress"`
	URL            string     `json:"url"`
	Events         []string   `json:"events"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastSuccess    *time.Time `json:"lastSuccess,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
}

// PlaceOrderRequest creates an order for a listing.
type PlaceOrderRequest struct {
	NFTID                  string `json:"nftId"`
	PaymentMethod          string `json:"paymentMethod"`
	PartnerPaymentMethodID string `json:"partnerPaymentMethodId,omitempty"`
	CardToken              string `json:"cardToken,omitempty"`
	Notes                  string `json:"notes,omitempty"`
}

// PlaceOrderResult is the order plus the transfer opened for it, if any.
type PlaceOrderResult struct {
	Order    *Order    `json:"order"`
	Transfer *Transfer `json:"transfer,omitempty"`
}

// RegisterResult is the account plus its API key, shown only once.
type RegisterResult struct {
	Account *Account `json:"account"`
	APIKey  string   `json:"apiKey"`
}

// CreateWebhookResult is the webhook plus its signing secret, shown only once.
type CreateWebhookResult struct {
	Webhook *Webhook `json:"webhook"`
	Secret  string   `json:"secret"`
}
