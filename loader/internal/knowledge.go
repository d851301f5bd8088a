package internal

import "wellrag/types"

// SeedDocuments is the reference knowledge base ingested by "loader seed".
func SeedDocuments() []types.Document {
	return []types.Document{
		types.NewDocument(
			"seed/who-menopause-overview",
			"WHO Menopause Overview",
			"World Health Organization 2023",
			`Menopause is defined as the permanent cessation of menstruation resulting from loss of ovarian follicular activity.
Common symptoms include hot flashes, sleep disturbance, mood changes, and reduced bone density.
Lifestyle interventions including physical activity, balanced diet, and stress management are recommended.`,
		),
		types.NewDocument(
			"seed/nams-hormone-therapy",
			"NAMS Hormone Therapy Position Statement",
			"North American Menopause Society 2022",
			`Hormone therapy remains the most effective treatment for vasomotor symptoms.
Risks and benefits vary depending on age and timing of initiation.
Individualized assessment is recommended.`,
		),
		types.NewDocument(
			"seed/sleep-and-menopause-review",
			"Sleep and Menopause Research Review",
			"Journal of Women's Health 2021",
			`Sleep disturbance is strongly correlated with menopausal vasomotor symptoms.
Cognitive behavioral therapy for insomnia has shown benefit.`,
		),
	}
}
