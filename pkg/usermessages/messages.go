// Package usermessages maps provider and API error codes to the pt-BR copy
// shown to end users.
package usermessages

import "strings"

// Input is the error shape reported by the auth provider or the API.
type Input struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Message is the title/body pair rendered by clients.
type Message struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

var fallback = Message{
	Title:   "Erro",
	Message: "Ocorreu um erro inesperado. Tente novamente em instantes.",
}

var byCode = map[string]Message{
	"invalid_credentials": {
		Title:   "Credenciais Inválidas",
		Message: "Email ou senha incorretos. Verifique seus dados e tente novamente.",
	},
	"email_already_in_use": {
		Title:   "Email Já Cadastrado",
		Message: "Já existe uma conta com este email. Faça login ou recupere sua senha.",
	},
	"email_not_confirmed": {
		Title:   "Email Não Confirmado",
		Message: "Confirme seu email pelo link enviado antes de entrar.",
	},
	"weak_password": {
		Title:   "Senha Fraca",
		Message: "Escolha uma senha com pelo menos 6 caracteres.",
	},
	"over_request_rate_limit": {
		Title:   "Muitas Tentativas",
		Message: "Você fez muitas tentativas. Aguarde alguns minutos e tente novamente.",
	},
	"VALIDATION_ERROR": {
		Title:   "Dados Inválidos",
		Message: "Alguns dados enviados são inválidos. Revise e tente novamente.",
	},
	"UNAUTHORIZED": {
		Title:   "Sessão Expirada",
		Message: "Faça login novamente para continuar.",
	},
	"PAYMENT_REQUIRED": {
		Title:   "Acesso Bloqueado",
		Message: "Adquira um passe para liberar os simulados.",
	},
	"FORBIDDEN": {
		Title:   "Acesso Negado",
		Message: "Você não tem permissão para realizar esta ação.",
	},
	"NOT_FOUND": {
		Title:   "Não Encontrado",
		Message: "O recurso solicitado não foi encontrado.",
	},
	"STATE_CONFLICT": {
		Title:   "Operação Não Permitida",
		Message: "Esta operação não é permitida no estado atual.",
	},
	"RATE_LIMIT_EXCEEDED": {
		Title:   "Muitas Tentativas",
		Message: "Você fez muitas requisições. Aguarde e tente novamente.",
	},
	"UPSTREAM_ERROR": {
		Title:   "Erro no Pagamento",
		Message: "Não foi possível concluir a operação com o processador de pagamentos.",
	},
}

// free-text fragments some providers send without a code.
var byFragment = []struct {
	fragment string
	code     string
}{
	{fragment: "invalid login credentials", code: "invalid_credentials"},
	{fragment: "invalid credentials", code: "invalid_credentials"},
	{fragment: "user already registered", code: "email_already_in_use"},
	{fragment: "email already in use", code: "email_already_in_use"},
	{fragment: "email not confirmed", code: "email_not_confirmed"},
}

// Describe returns the user-facing copy for in. Unknown inputs map to a
// generic "Erro" message.
func Describe(in Input) Message {
	if msg, ok := byCode[strings.TrimSpace(in.Code)]; ok {
		return msg
	}
	if msg, ok := byCode[strings.ToLower(strings.TrimSpace(in.Code))]; ok {
		return msg
	}
	text := strings.ToLower(in.Message)
	for _, candidate := range byFragment {
		if strings.Contains(text, candidate.fragment) {
			return byCode[candidate.code]
		}
	}
	return fallback
}
