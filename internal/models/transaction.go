package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction is an append-only purchase record. Amount snapshots the product
// price at purchase time and is never rewritten.
type Transaction struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	ProductID       primitive.ObjectID `bson:"productId" json:"productId"`
	Amount          int                `bson:"amount" json:"amount"`
	TransactionDate time.Time          `bson:"transactionDate" json:"transaction_date"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
