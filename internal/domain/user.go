package domain

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Address struct {
	ID      int64  `json:"id"`
	UserID  string `json:"user_id"`
	Line1   string `json:"line1"`
	City    string `json:"city"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}
