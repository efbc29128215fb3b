package model

// Unknown fills scalar profile fields the analyzer left blank.
const Unknown = "Unknown"

// CompetitorProfile is the structured analysis of one competitor's website.
// The same schema is used for fresh and cached profiles.
type CompetitorProfile struct {
	CompanyInfo       CompanyInfo       `json:"company_info"`
	MarketPosition    MarketPosition    `json:"market_position"`
	ProductService    ProductService    `json:"product_service"`
	OnlinePresence    OnlinePresence    `json:"online_presence"`
	CustomerSentiment CustomerSentiment `json:"customer_sentiment"`
	BusinessGrowth    BusinessGrowth    `json:"business_growth"`
	TechStack         TechStack         `json:"tech_stack"`
	MarketingStrategy MarketingStrategy `json:"marketing_strategy"`
}

type CompanyInfo struct {
	Name        string   `json:"name"`
	Website     string   `json:"website"`
	Industry    string   `json:"industry"`
	FoundedYear *int     `json:"founded_year"`
	Location    string   `json:"location,omitempty"`
	Founders    []string `json:"founders,omitempty"`
}

type MarketPosition struct {
	TargetAudience    []string `json:"target_audience"`
	BrandReputation   string   `json:"brand_reputation"`
	ValuePropositions []string `json:"value_propositions"`
}

type ProductService struct {
	Features        []string          `json:"features"`
	Pricing         map[string]string `json:"pricing"`
	Differentiators []string          `json:"differentiators"`
}

type OnlinePresence struct {
	WebsiteTraffic  string            `json:"website_traffic,omitempty"`
	DomainAuthority string            `json:"domain_authority,omitempty"`
	SocialMedia     map[string]string `json:"social_media"`
	ContentStrategy string            `json:"content_strategy,omitempty"`
}

type CustomerSentiment struct {
	PositiveFeedback []string `json:"positive_feedback"`
	NegativeFeedback []string `json:"negative_feedback"`
	CommonPainPoints []string `json:"common_pain_points"`
	PraisePoints     []string `json:"praise_points"`
}

type BusinessGrowth struct {
	FundingRounds    string   `json:"funding_rounds,omitempty"`
	RevenueEstimates string   `json:"revenue_estimates,omitempty"`
	Partnerships     []string `json:"partnerships"`
	MarketGrowth     string   `json:"market_growth"`
}

type TechStack struct {
	Tools           []string `json:"tools"`
	AIMLUsage       string   `json:"ai_ml_usage,omitempty"`
	Frameworks      []string `json:"frameworks"`
	PlatformDetails string   `json:"platform_details"`
}

type MarketingStrategy struct {
	Campaigns         []string `json:"campaigns"`
	Channels          []string `json:"channels"`
	Positioning       string   `json:"positioning"`
	EngagementMetrics string   `json:"engagement_metrics,omitempty"`
}

// PlaceholderProfile is the degraded profile returned for a competitor
// whose website could not be resolved, fetched or analyzed.
func PlaceholderProfile(name, website string) CompetitorProfile {
	p := CompetitorProfile{
		CompanyInfo: CompanyInfo{
			Name:     name,
			Website:  website,
			Industry: Unknown,
		},
		MarketPosition: MarketPosition{
			TargetAudience:    []string{Unknown},
			BrandReputation:   Unknown,
			ValuePropositions: []string{"Analysis failed"},
		},
		ProductService: ProductService{
			Features: []string{AnalysisUnavailable},
		},
		BusinessGrowth:    BusinessGrowth{MarketGrowth: Unknown},
		TechStack:         TechStack{PlatformDetails: Unknown},
		MarketingStrategy: MarketingStrategy{Positioning: Unknown},
	}
	p.FillDefaults()
	return p
}

// FillDefaults replaces nil collections with empty ones and blank
// descriptive fields with Unknown, so every profile serializes with the
// same shape.
func (p *CompetitorProfile) FillDefaults() {
	orUnknown := func(s *string) {
		if *s == "" {
			*s = Unknown
		}
	}
	orEmpty := func(s *[]string) {
		if *s == nil {
			*s = []string{}
		}
	}

	orUnknown(&p.CompanyInfo.Industry)
	orUnknown(&p.MarketPosition.BrandReputation)
	orUnknown(&p.BusinessGrowth.MarketGrowth)
	orUnknown(&p.TechStack.PlatformDetails)
	orUnknown(&p.MarketingStrategy.Positioning)

	for _, s := range []*[]string{
		&p.MarketPosition.TargetAudience,
		&p.MarketPosition.ValuePropositions,
		&p.ProductService.Features,
		&p.ProductService.Differentiators,
		&p.CustomerSentiment.PositiveFeedback,
		&p.CustomerSentiment.NegativeFeedback,
		&p.CustomerSentiment.CommonPainPoints,
		&p.CustomerSentiment.PraisePoints,
		&p.BusinessGrowth.Partnerships,
		&p.TechStack.Tools,
		&p.TechStack.Frameworks,
		&p.MarketingStrategy.Campaigns,
		&p.MarketingStrategy.Channels,
	} {
		orEmpty(s)
	}
	if p.ProductService.Pricing == nil {
		p.ProductService.Pricing = map[string]string{}
	}
	if p.OnlinePresence.SocialMedia == nil {
		p.OnlinePresence.SocialMedia = map[string]string{}
	}
}
