package domain

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleStaff    Role = "STAFF"
	RoleCustomer Role = "CUSTOMER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// AuthResponse is the body returned by the login endpoint.
type AuthResponse struct {
	Token string `json:"token"`
	Role  Role   `json:"role,omitempty"`
	User  User   `json:"user"`
}

type LoginDTO struct {
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

type RegisterDTO struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=100"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// UpdateUserDTO is sent to the users endpoint; an empty password leaves it unchanged.
type UpdateUserDTO struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password,omitempty" validate:"omitempty,min=6"`
}

// ProfileUpdateDTO is the self-service profile form.
type ProfileUpdateDTO struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	CurrentPassword string `json:"currentPassword" validate:"required_with=NewPassword"`
	NewPassword     string `json:"newPassword" validate:"omitempty,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=NewPassword"`
}

type RoleCount struct {
	Admins    int `json:"admins"`
	Staff     int `json:"staff"`
	Customers int `json:"customers"`
}

func CountRoles(users []User) RoleCount {
	var c RoleCount
	for _, u := range users {
		switch u.Role {
		case RoleAdmin:
			c.Admins++
		case RoleStaff:
			c.Staff++
		case RoleCustomer:
			c.Customers++
		}
	}
	return c
}

// UserNames indexes users by id for views that label rows with a name.
func UserNames(users []User) map[int64]string {
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}
