package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ensureID assigns a v4 id when the row is created without one. Postgres
// also defaults ids through gen_random_uuid(); sqlite test databases do not.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

func (v *OrderVoucher) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

func (p *PaymentProof) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (p *PaymentTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (i *Inventory) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

func (j *StockJournal) BeforeCreate(*gorm.DB) error {
	ensureID(&j.ID)
	return nil
}

func (v *Voucher) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	if v.EligibleProductIDs == nil {
		v.EligibleProductIDs = pq.StringArray{}
	}
	if v.EligibleUserIDs == nil {
		v.EligibleUserIDs = pq.StringArray{}
	}
	return nil
}

func (s *Store) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

func (m *ShippingMethod) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
