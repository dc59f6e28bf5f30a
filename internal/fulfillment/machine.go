// Package fulfillment defines the post-payment fulfillment workflow graph.
package fulfillment

import (
	"errors"
	"fmt"
	"slices"
)

// State is an administrator-visible fulfillment status.
type State string

const (
	StatePedidoRealizado     State = "Pedido Realizado"
	StatePgtoAprovado        State = "Pgto Aprovado"
	StatePgtoRecusado        State = "Pgto Recusado"
	StateAvisoEnviado        State = "Aviso enviado"
	StatePgtoConfirmado      State = "Pgto Confirmado"
	StateEmSeparacao         State = "Em separação"
	StateSeparadoEmbalado    State = "Separado Embalado"
	StateAguardandoColeta    State = "Aguardando coleta"
	StatePedidoColetado      State = "Pedido coletado"
	StatePedidoEntregue      State = "Pedido Entregue"
	StatePedidoDevolvido     State = "Pedido Devolvido"
	StatePedidoEmCorrecao    State = "Pedido em correção"
	StatePagamentoEstornado  State = "Pagamento Estornado"
	StateArquivadoComSucesso State = "Arquivado com sucesso"
	StateArquivadoSemSucesso State = "Arquivado sem sucesso"
)

// Initial is the state every order enters when its payment settles.
const Initial = StatePedidoRealizado

var (
	ErrNoAutomaticTransition = errors.New("no automatic transition available")
	ErrInvalidTransition     = errors.New("invalid fulfillment transition")
	ErrUnknownState          = errors.New("unknown fulfillment state")
)

// Successor lists are ordered as shown to administrators.
var graph = map[State][]State{
	StatePedidoRealizado:     {StatePgtoAprovado, StatePgtoRecusado},
	StatePgtoRecusado:        {StateAvisoEnviado},
	StateAvisoEnviado:        {StateArquivadoSemSucesso},
	StatePgtoAprovado:        {StatePgtoConfirmado},
	StatePgtoConfirmado:      {StateEmSeparacao},
	StateEmSeparacao:         {StateSeparadoEmbalado},
	StateSeparadoEmbalado:    {StateAguardandoColeta},
	StateAguardandoColeta:    {StatePedidoColetado},
	StatePedidoColetado:      {StatePedidoEntregue, StatePedidoDevolvido},
	StatePedidoEntregue:      {StateArquivadoComSucesso},
	StatePedidoDevolvido:     {StatePedidoEmCorrecao},
	StatePedidoEmCorrecao:    {StatePagamentoEstornado},
	StatePagamentoEstornado:  {StateArquivadoSemSucesso},
	StateArquivadoComSucesso: nil,
	StateArquivadoSemSucesso: nil,
}

// Known reports whether s is part of the fulfillment graph.
func Known(s State) bool {
	_, ok := graph[s]
	return ok
}

// Successors returns a copy of the permitted next states of s.
func Successors(s State) []State {
	return slices.Clone(graph[s])
}

func IsTerminal(s State) bool {
	return Known(s) && len(graph[s]) == 0
}

func IsBranching(s State) bool {
	return len(graph[s]) > 1
}

// Next returns the only successor of current. Terminal and branching states
// have no automatic successor and must be resolved with Choose.
func Next(current State) (State, error) {
	if !Known(current) {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, current)
	}
	successors := graph[current]
	switch len(successors) {
	case 0:
		return "", fmt.Errorf("%w: %q is terminal", ErrNoAutomaticTransition, current)
	case 1:
		return successors[0], nil
	default:
		return "", fmt.Errorf("%w: %q requires choosing one of %v", ErrNoAutomaticTransition, current, successors)
	}
}

// Choose validates an explicit outcome for a branching state.
func Choose(current, target State) (State, error) {
	if !Known(current) {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, current)
	}
	if !IsBranching(current) {
		return "", fmt.Errorf("%w: %q has no outcome to choose", ErrInvalidTransition, current)
	}
	if !slices.Contains(graph[current], target) {
		return "", fmt.Errorf("%w: %q is not a successor of %q", ErrInvalidTransition, target, current)
	}
	return target, nil
}
