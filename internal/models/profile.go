package models

// Profile — донорский профиль пользователя.
type Profile struct {
	ID          int64  `json:"id,omitempty"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Gender      string `json:"gender"`
	City        string `json:"city"`
	BloodGroup  string `json:"blood_group"`
	Role        string `json:"role"`
	PhoneNumber string `json:"phone_number"`
}

// FullName возвращает имя для отображения.
func (p *Profile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}

	return p.FirstName + " " + p.LastName
}

// Donor — запись в выдаче поиска доноров (профиль с role=donor).
type Donor struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	City        string `json:"city"`
	BloodGroup  string `json:"blood_group"`
	PhoneNumber string `json:"phone_number"`
}
