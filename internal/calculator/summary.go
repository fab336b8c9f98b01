package calculator

import (
	"fmt"
	"strings"

	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/money"
)

const divider = "━━━━━━━━━━━━━━━━━━"

// Summary renders a settlement as shareable plain text. Tip, tax and
// unassigned lines only appear when non-zero.
func Summary(state *models.SessionState, s *Settlement) string {
	var b strings.Builder
	b.WriteString("🍽️ *Resumen de la Cena*\n")
	b.WriteString(divider + "\n\n")

	for _, p := range s.Participants {
		fmt.Fprintf(&b, "👤 %s: %s\n", p.Name, money.FormatCOP(p.Total))
	}

	b.WriteString("\n" + divider + "\n")
	fmt.Fprintf(&b, "📊 Subtotal: %s\n", money.FormatCOP(s.Subtotal))
	if s.Tip.IsPositive() {
		fmt.Fprintf(&b, "💰 Propina (%s%%): %s\n", state.Session.TipPercentage.String(), money.FormatCOP(s.Tip))
	}
	if s.Tax.IsPositive() {
		fmt.Fprintf(&b, "🧾 Impuestos: %s\n", money.FormatCOP(s.Tax))
	}
	if s.UnassignedTotal.IsPositive() {
		fmt.Fprintf(&b, "⚠️ Sin asignar: %s\n", money.FormatCOP(s.UnassignedTotal))
	}
	fmt.Fprintf(&b, "💵 *Total: %s*", money.FormatCOP(s.GrandTotal))
	return b.String()
}
