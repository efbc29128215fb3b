package analyzer

import (
	"fmt"
	"strings"

	"github.com/FranksOps/rival/internal/model"
)

const profileSchema = `{
  "company_info": {"name": "", "website": "", "industry": "", "founded_year": 0, "location": "", "founders": [""]},
  "market_position": {"target_audience": [""], "brand_reputation": "", "value_propositions": [""]},
  "product_service": {"features": [""], "pricing": {"plan": "price"}, "differentiators": [""]},
  "online_presence": {"website_traffic": "", "domain_authority": "", "social_media": {"platform": "url"}, "content_strategy": ""},
  "customer_sentiment": {"positive_feedback": [""], "negative_feedback": [""], "common_pain_points": [""], "praise_points": [""]},
  "business_growth": {"funding_rounds": "", "revenue_estimates": "", "partnerships": [""], "market_growth": ""},
  "tech_stack": {"tools": [""], "ai_ml_usage": "", "frameworks": [""], "platform_details": ""},
  "marketing_strategy": {"campaigns": [""], "channels": [""], "positioning": "", "engagement_metrics": ""}
}`

func decodeProfile(o object) model.CompetitorProfile {
	ci := o.obj("company_info")
	mp := o.obj("market_position")
	ps := o.obj("product_service")
	op := o.obj("online_presence")
	cs := o.obj("customer_sentiment")
	bg := o.obj("business_growth")
	ts := o.obj("tech_stack")
	ms := o.obj("marketing_strategy")

	return model.CompetitorProfile{
		CompanyInfo: model.CompanyInfo{
			Name:        ci.str("name"),
			Website:     ci.str("website"),
			Industry:    ci.str("industry"),
			FoundedYear: ci.year("founded_year"),
			Location:    ci.str("location"),
			Founders:    ci.list("founders"),
		},
		MarketPosition: model.MarketPosition{
			TargetAudience:    mp.list("target_audience"),
			BrandReputation:   mp.str("brand_reputation"),
			ValuePropositions: mp.list("value_propositions"),
		},
		ProductService: model.ProductService{
			Features:        ps.list("features"),
			Pricing:         ps.dict("pricing"),
			Differentiators: ps.list("differentiators"),
		},
		OnlinePresence: model.OnlinePresence{
			WebsiteTraffic:  op.str("website_traffic"),
			DomainAuthority: op.str("domain_authority"),
			SocialMedia:     op.dict("social_media"),
			ContentStrategy: op.str("content_strategy"),
		},
		CustomerSentiment: model.CustomerSentiment{
			PositiveFeedback: cs.list("positive_feedback"),
			NegativeFeedback: cs.list("negative_feedback"),
			CommonPainPoints: cs.list("common_pain_points"),
			PraisePoints:     cs.list("praise_points"),
		},
		BusinessGrowth: model.BusinessGrowth{
			FundingRounds:    bg.str("funding_rounds"),
			RevenueEstimates: bg.str("revenue_estimates"),
			Partnerships:     bg.list("partnerships"),
			MarketGrowth:     bg.str("market_growth"),
		},
		TechStack: model.TechStack{
			Tools:           ts.list("tools"),
			AIMLUsage:       ts.str("ai_ml_usage"),
			Frameworks:      ts.list("frameworks"),
			PlatformDetails: ts.str("platform_details"),
		},
		MarketingStrategy: model.MarketingStrategy{
			Campaigns:         ms.list("campaigns"),
			Channels:          ms.list("channels"),
			Positioning:       ms.str("positioning"),
			EngagementMetrics: ms.str("engagement_metrics"),
		},
	}
}

// marketBrief renders the collected data for the synthesis prompts.
// Placeholder competitors are left out.
func marketBrief(query string, items []model.SearchItem, competitors []model.CompetitorItem, differentiators bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nSearch results:\n", query)
	for _, it := range items {
		fmt.Fprintf(&sb, "\nTitle: %s\nSnippet: %s\n", it.Title, it.Snippet)
		if it.Status == model.SearchOK {
			fmt.Fprintf(&sb, "Analysis: %s\n", it.Analysis)
		}
	}

	wrote := false
	for _, c := range competitors {
		if !c.OK() {
			continue
		}
		if !wrote {
			sb.WriteString("\nCompetitor profiles:\n")
			wrote = true
		}
		p := c.Profile
		fmt.Fprintf(&sb, "\nCompetitor: %s\nIndustry: %s\nTarget market: %s\nKey features: %s\nValue propositions: %s\n",
			p.CompanyInfo.Name,
			p.CompanyInfo.Industry,
			strings.Join(p.MarketPosition.TargetAudience, ", "),
			strings.Join(p.ProductService.Features, ", "),
			strings.Join(p.MarketPosition.ValuePropositions, ", "),
		)
		if differentiators {
			fmt.Fprintf(&sb, "Differentiators: %s\n", strings.Join(p.ProductService.Differentiators, ", "))
		}
	}
	return sb.String()
}
