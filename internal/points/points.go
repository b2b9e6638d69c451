// Package points holds the rules of the point economy. Persistence lives in
// the engine, which applies these rules inside a transaction.
package points

import (
	"errors"
	"fmt"
)

const (
	DefaultInitial  = 100
	DefaultTaskGain = 10
	DefaultJamaCost = 50
)

var ErrInsufficientPoints = errors.New("insufficient points")

// Gain returns the balance after crediting amount.
func Gain(balance, amount int) (int, error) {
	if amount <= 0 {
		return balance, fmt.Errorf("gain amount must be positive, got %d", amount)
	}
	return balance + amount, nil
}

// Spend returns the balance after debiting cost, or ErrInsufficientPoints
// with the balance unchanged.
func Spend(balance, cost int) (int, error) {
	if cost <= 0 {
		return balance, fmt.Errorf("spend cost must be positive, got %d", cost)
	}
	if balance < cost {
		return balance, fmt.Errorf("%w: balance %d, cost %d", ErrInsufficientPoints, balance, cost)
	}
	return balance - cost, nil
}
