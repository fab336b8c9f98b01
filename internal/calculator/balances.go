package calculator

import "github.com/shopspring/decimal"

// Transfer is a payment one participant owes to whoever paid the bill.
type Transfer struct {
	From     string          `json:"from"`
	FromName string          `json:"from_name"`
	To       string          `json:"to"`
	ToName   string          `json:"to_name"`
	Amount   decimal.Decimal `json:"amount"`
}

// minTransfer is the smallest amount worth asking someone to pay.
var minTransfer = decimal.NewFromInt(1)

// Transfers lists what each participant owes payerID, assuming the payer
// covered the whole bill. Amounts are rounded to whole pesos and anything
// below one peso is skipped. An unknown payer yields no transfers.
func Transfers(s *Settlement, payerID string) []Transfer {
	payer, ok := s.Participant(payerID)
	if !ok {
		return nil
	}

	var transfers []Transfer
	for _, p := range s.Participants {
		if p.ParticipantID == payerID {
			continue
		}
		amount := p.Total.Round(0)
		if amount.LessThan(minTransfer) {
			continue
		}
		transfers = append(transfers, Transfer{
			From:     p.ParticipantID,
			FromName: p.Name,
			To:       payer.ParticipantID,
			ToName:   payer.Name,
			Amount:   amount,
		})
	}
	return transfers
}
