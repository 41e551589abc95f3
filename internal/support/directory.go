package support

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
)

// Customer is a bank customer with login credentials.
type Customer struct {
	ID           int
	Name         string
	Username     string
	PasswordHash string // sha256 hex
	Active       bool
	Balance      float64
	Pending      float64
}

// HashPassword returns the sha256 hex digest of password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Directory is the customer database.
type Directory struct {
	mu         sync.RWMutex
	byUsername map[string]*Customer
	byID       map[int]*Customer
}

// NewDirectory returns a directory seeded with the demo customers.
func NewDirectory() *Directory {
	return NewDirectoryWith(
		Customer{ID: 123, Name: "John Doe", Username: "john_doe", PasswordHash: HashPassword("password123"), Active: true, Balance: 100.00, Pending: 23.45},
		Customer{ID: 124, Name: "Jane Smith", Username: "jane_smith", PasswordHash: HashPassword("securepass456"), Active: true, Balance: 250.75, Pending: 15.30},
	)
}

// NewDirectoryWith builds a directory from customers.
func NewDirectoryWith(customers ...Customer) *Directory {
	d := &Directory{byUsername: make(map[string]*Customer), byID: make(map[int]*Customer)}
	for _, c := range customers {
		d.byUsername[c.Username] = &c
		d.byID[c.ID] = &c
	}
	return d
}

// Authenticate checks credentials and returns the customer id. Inactive
// accounts cannot log in.
func (d *Directory) Authenticate(username, password string) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byUsername[username]
	if !ok || !c.Active {
		return 0, false
	}
	if subtle.ConstantTimeCompare([]byte(HashPassword(password)), []byte(c.PasswordHash)) != 1 {
		return 0, false
	}
	return c.ID, true
}

// CustomerName returns the customer's display name.
func (d *Directory) CustomerName(id int) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[id]
	if !ok {
		return "", false
	}
	return c.Name, true
}

// IsActive reports whether the account is active. Unknown ids are inactive.
func (d *Directory) IsActive(id int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[id]
	return ok && c.Active
}

// SetActive changes an account's status.
func (d *Directory) SetActive(id int, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.byID[id]; ok {
		c.Active = active
	}
}

// Balance returns the current balance, plus pending transactions when
// includePending is set.
func (d *Directory) Balance(id int, includePending bool) (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[id]
	if !ok {
		return 0, fmt.Errorf("Customer not found with id: %d", id)
	}
	if includePending {
		return c.Balance + c.Pending, nil
	}
	return c.Balance, nil
}
