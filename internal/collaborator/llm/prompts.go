package llm

import "fmt"

const classifyPrompt = `You review startup news for an investment research team.
Decide whether the article below is specifically about a company raising money:
a priced round (pre-seed, seed, Series A and later), a venture or angel investment,
or a closed fundraise.

Answer false for product launches, partnerships, acquisitions, IPOs, awards, grants,
competitions, revenue or user milestones, layoffs and general business news.

Reply with a JSON object only: {"is_funding": true|false, "reason": "short explanation"}

Article:
%s`

const extractPrompt = `Extract every funding event described in the article below.
For each company that raised money give:
- company_name: the company that raised
- amount: the amount as written, including currency and magnitude (for example "$12.5 million")
- round: the round label as written (for example "Series A"), or ""
- date: the date the raise was announced or closed as written, or ""

Leave a field empty when the article does not say. Do not list investors as companies.

Reply with JSON only. One event: {"company_name": "", "amount": "", "round": "", "date": ""}
Several events: {"events": [ ... one object per event ... ]}

Article:
%s`

const guessPrompt = `The article below mentions the company %q.
Suggest where its official web presence lives.
- website_guesses: up to three likely domains, most likely first (for example "acme.com", "acme.ai", "getacme.com")
- profile_guess: the most likely LinkedIn company page URL, or ""

Reply with a JSON object only: {"website_guesses": [], "profile_guess": ""}

Article:
%s`

func buildClassifyPrompt(text string) string {
	return fmt.Sprintf(classifyPrompt, text)
}

func buildExtractPrompt(text string) string {
	return fmt.Sprintf(extractPrompt, text)
}

func buildGuessPrompt(text, company string) string {
	return fmt.Sprintf(guessPrompt, company, text)
}
