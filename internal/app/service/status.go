package service

import (
	"github.com/instafly/instafly/internal/app/models"
)

// StatusInfo is the presentation record for one order status: what the
// tracking page shows for it.
type StatusInfo struct {
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Progress    int    `json:"progress"`
	Description string `json:"description"`
	NextStep    string `json:"next_step"`
}

var statusTable = map[models.Status]StatusInfo{
	models.PendingPayment: {
		Label:       "Aguardando Pagamento",
		Icon:        "clock",
		Color:       "yellow",
		Progress:    10,
		Description: "Seu pedido foi criado e aguarda a confirmação do pagamento.",
		NextStep:    "Pague o PIX para iniciar o processamento.",
	},
	models.Processing: {
		Label:       "Processando",
		Icon:        "loader",
		Color:       "blue",
		Progress:    40,
		Description: "Pagamento confirmado. Seu pedido está sendo processado.",
		NextStep:    "A entrega começa em instantes.",
	},
	models.DripFeedActive: {
		Label:       "Entrega Gradual",
		Icon:        "trending-up",
		Color:       "indigo",
		Progress:    60,
		Description: "Seu pedido está sendo entregue aos poucos, todos os dias.",
		NextStep:    "Acompanhe o crescimento diário do seu perfil.",
	},
	models.Partial: {
		Label:       "Parcialmente Entregue",
		Icon:        "pie-chart",
		Color:       "orange",
		Progress:    75,
		Description: "Parte do pedido foi entregue; o restante será reembolsado.",
		NextStep:    "Verifique o saldo da sua carteira.",
	},
	models.Completed: {
		Label:       "Concluído",
		Icon:        "check-circle",
		Color:       "green",
		Progress:    100,
		Description: "Pedido entregue com sucesso.",
		NextStep:    "Avalie o serviço e aproveite seus benefícios VIP.",
	},
	models.Cancelled: {
		Label:       "Cancelado",
		Icon:        "x-circle",
		Color:       "red",
		Progress:    0,
		Description: "O pedido foi cancelado.",
		NextStep:    "Entre em contato com o suporte se precisar de ajuda.",
	},
	models.Refunded: {
		Label:       "Reembolsado",
		Icon:        "rotate-ccw",
		Color:       "gray",
		Progress:    0,
		Description: "O valor do pedido foi devolvido à sua carteira.",
		NextStep:    "O saldo já está disponível para novos pedidos.",
	},
}

var unknownStatusInfo = StatusInfo{
	Label:       "Status Desconhecido",
	Icon:        "help-circle",
	Color:       "gray",
	Progress:    0,
	Description: "Não foi possível identificar o status deste pedido.",
	NextStep:    "Entre em contato com o suporte.",
}

// StatusInfoFor never fails: an unrecognized status yields the generic
// fallback record.
func StatusInfoFor(s models.Status) StatusInfo {
	if info, ok := statusTable[s]; ok {
		return info
	}
	return unknownStatusInfo
}

// statusRank orders the forward lifecycle. Absorbing and unknown statuses
// have no rank.
var statusRank = map[models.Status]int{
	models.PendingPayment: 0,
	models.Processing:     1,
	models.DripFeedActive: 2,
	models.Partial:        3,
	models.Completed:      4,
}

// CanTransition enforces the lifecycle: forward-only through the ranked
// states, with cancelled/refunded reachable from any non-terminal status.
func CanTransition(from, to models.Status) bool {
	if from == to {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to == models.Cancelled || to == models.Refunded {
		return true
	}
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	return toRank > fromRank
}
