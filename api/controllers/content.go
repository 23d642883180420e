package controllers

import (
	"net/http"

	"github.com/vrumi/vrumi-backend/api/responses"
)

type simulado struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Questions int    `json:"questions"`
	Minutes   int    `json:"minutes"`
}

var simulados = []simulado{
	{ID: "detran-oficial", Title: "Simulado Oficial DETRAN", Questions: 30, Minutes: 40},
	{ID: "legislacao", Title: "Legislação de Trânsito", Questions: 20, Minutes: 25},
	{ID: "direcao-defensiva", Title: "Direção Defensiva", Questions: 15, Minutes: 20},
	{ID: "primeiros-socorros", Title: "Primeiros Socorros", Questions: 10, Minutes: 15},
	{ID: "placas", Title: "Placas de Sinalização", Questions: 20, Minutes: 20},
}

// Simulados lists the mock exams. The route sits behind RequireEntitlement.
func Simulados() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, simulados)
	}
}
