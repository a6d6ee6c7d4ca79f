package domain

// User is the subset of the users table this service reads.
type User struct {
	UserID string `json:"id" dynamodbav:"user_id"`
	Role   string `json:"role" dynamodbav:"role"`
}
