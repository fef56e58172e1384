// Package registrant generates fresh registration identities.
package registrant

// Registrant is one complete set of registration form values. It is an
// immutable value; a new one is generated for every attempt.
type Registrant struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Phone     string `json:"phone"`
	SSN       string `json:"ssn"`
	Username  string `json:"username"`
	Password  string `json:"-"`
}

// FullName joins first and last name.
func (r Registrant) FullName() string {
	return r.FirstName + " " + r.LastName
}
