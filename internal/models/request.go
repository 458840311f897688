package models

type GenerateRequest struct {
	ReferenceImageURL string `json:"referenceImageURL" binding:"required"`
	GarmentImageURL   string `json:"garmentImageURL" binding:"required"`
	UserPrompt        string `json:"userPrompt"`
}

type GenerateStatusRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
}

type EditRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
	NewPrompt string `json:"newPrompt" binding:"required"`
}

type UpdateUserRequest struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarURL"`
}

type CreateUserRequest struct {
	UserID string `json:"userId" binding:"required"`
	Email  string `json:"email"`
}

type CheckoutSessionRequest struct {
	PriceID    string `json:"priceId" binding:"required"`
	SuccessURL string `json:"successURL"`
	CancelURL  string `json:"cancelURL"`
}

type PortalSessionRequest struct {
	ReturnURL string `json:"returnURL"`
}
