package models

import "time"

// Reservation to krótkotrwała blokada książki leżącej na półce
type Reservation struct {
	UserID    string    `json:"user_id" firestore:"user_id"`
	ExpiresAt time.Time `json:"expires_at" firestore:"expires_at"`
}

// IsExpired sprawdza czy rezerwacja wygasła
func (r *Reservation) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// TimeLeft zwraca czas do wygaśnięcia rezerwacji
func (r *Reservation) TimeLeft(now time.Time) time.Duration {
	left := r.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
