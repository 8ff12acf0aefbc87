package staff

// Member is the roster projection of a user linked to a physician.
type Member struct {
	ID        string  `json:"id"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	Image     *string `json:"image"`
}
