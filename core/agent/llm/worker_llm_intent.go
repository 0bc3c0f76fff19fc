package llm

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

const intentSystemPrompt = `Du bist ein Klassifizierer für E-Mails an einen Hersteller von Phasenwechselmaterialien (PCM).
Du erhältst eine E-Mail im JSON-Format.

Aufgabe:
- StatusAngebot: Bittet die Mail um ein Angebot, eine Quotation oder Preise? 1 = ja, 0 = nein, 2 = unklar.
- Universität: Kommt die Anfrage von einer Universität, einem Studenten oder einer Forschungsgruppe? 1 = ja, 0 = nein, 2 = unklar.
- PhaseCube, PhaseTube, PhaseDrum: Enthält die Mail das jeweilige Wort? Nur 0 oder 1, bei Unklarheit 0.

Beispiele für Angebotsanfragen:
"Können Sie mir bitte ein Angebot zukommen lassen inkl. Lieferung?"
"Ich freue mich über ein entsprechendes Angebot inklusive Versandkosten."
"Please provide the offer for PCM encapsulated materials."
Betreff: "Anfrage Angebot", "Request for Quotation", "Quote Request".

Beispiele für Universitäten oder Studenten:
"Ich schreibe meine Masterarbeit an der Technischen Universität München"
"We are a research team from the University of Cambridge"

Antworte ausschließlich mit einem JSON-Objekt:
{"StatusAngebot": 0, "Universität": 0, "PhaseCube": 0, "PhaseTube": 0, "PhaseDrum": 0}`

// PredictIntentFlags returns the raw flag values from the model.
// Values are not validated here.
func (c *Client) PredictIntentFlags(ctx context.Context, subject, body string) (map[string]any, error) {
	mail, err := json.Marshal(map[string]string{
		"subject": subject,
		"body":    truncateBody(body, 4000),
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.CompleteJSON(ctx, intentSystemPrompt, "E-Mail:\n"+string(mail))
	if err != nil {
		return nil, fmt.Errorf("predict intent: %w", err)
	}

	raw, err := ParseJSONObject(resp)
	if err != nil {
		return nil, fmt.Errorf("predict intent: %w", err)
	}
	return raw, nil
}
