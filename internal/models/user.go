package models

// User is an account holder. A row only ever comes into existence through a
// successful signup-code verification; the email column carries the uniqueness
// constraint that backstops concurrent verification attempts.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Name     string `gorm:"not null" json:"name"`
	ImgURL   string `json:"imgURL"`
}
