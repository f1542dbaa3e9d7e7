package chat

import (
	"fmt"
	"strings"
)

// User-facing messages. The backend speaks pt-BR to its users; synthesized
// client messages match.
const (
	// MsgAttachFilesFirst is the fixed guidance shown when an AlphaBot send
	// is attempted with no bound session. Precondition, not a network error.
	MsgAttachFilesFirst = "Por favor, anexe planilhas (.csv, .xlsx) primeiro usando o botão de anexo."

	// MsgConversationFailed is shown when the registry cannot resolve or
	// create a conversation for a send. Locally synthesized, never a
	// classified backend error.
	MsgConversationFailed = "Desculpe, não foi possível iniciar uma conversa. Tente novamente em instantes."

	MsgTimeout     = "O servidor demorou muito para responder. Tente novamente em instantes."
	MsgOffline     = "Você parece estar offline. Verifique sua conexão com a internet."
	MsgUnavailable = "Não foi possível conectar ao servidor. Verifique se o backend está rodando."
	MsgRateLimited = "Muitas requisições em sequência. Aguarde um momento e tente novamente."
)

// errorSignature maps known failure fingerprints to a localized message.
type errorSignature struct {
	substrings []string
	message    string
}

// signatureTable is matched in order against the lowercased error text and
// the first match wins. The order is part of the contract: timeout, offline,
// server unavailable, rate limited. Changing it changes user-visible
// behavior, so tests pin it down.
var signatureTable = []errorSignature{
	{[]string{"context deadline exceeded", "timed out", "timeout"}, MsgTimeout},
	{[]string{"no such host", "network is unreachable", "offline"}, MsgOffline},
	{[]string{"connection refused", "connection reset", "status 502", "status 503", "status 504"}, MsgUnavailable},
	{[]string{"status 429", "too many requests", "rate limit"}, MsgRateLimited},
}

// Classify translates a transport or application error into the localized
// message shown as a bot reply. Unmatched errors fall back to a generic
// template embedding the raw error text, always behind a localized prefix.
func Classify(err error) string {
	text := strings.ToLower(err.Error())
	for _, sig := range signatureTable {
		for _, sub := range sig.substrings {
			if strings.Contains(text, sub) {
				return sig.message
			}
		}
	}
	return fmt.Sprintf("Desculpe, ocorreu um erro ao processar sua mensagem.\n\nErro: %v", err)
}
