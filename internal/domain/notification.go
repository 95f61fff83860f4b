package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Notification Model
type Notification struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);index;not null" json:"userId"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notice is the title and body of a user notification.
type Notice struct {
	Title   string
	Message string
}

func TopupNotice(amount decimal.Decimal) Notice {
	return Notice{"Top Up Berhasil", "Saldo bertambah " + FormatRupiah(amount)}
}

func PaymentNotice(amount decimal.Decimal, method string) Notice {
	return Notice{"Pembayaran Berhasil", "Pembayaran " + FormatRupiah(amount) + " via " + method + " berhasil. Saldo berkurang."}
}

func CreditGrantedNotice(amount decimal.Decimal) Notice {
	return Notice{"Kredit Disetujui", "Kredit " + FormatRupiah(amount) + " telah masuk ke wallet"}
}

func CreditPaidNotice(amount decimal.Decimal) Notice {
	return Notice{"Kredit Lunas", "Pembayaran kredit " + FormatRupiah(amount) + " berhasil"}
}
