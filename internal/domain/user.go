package domain

import "time"

type Role string

const (
	RoleTourist  Role = "tourist"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTourist, RoleSupplier, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RegisterUserInput struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Name  string `json:"name" validate:"required,min=2,max=120"`
	Role  Role   `json:"role" validate:"required,oneof=tourist supplier admin"`
}
