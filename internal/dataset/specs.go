package dataset

func init() {
	register(Spec{
		Name:  Campaigns,
		Table: "campaigns",
		Mode:  Upsert,
		Key:   []string{"campaign_id"},
		Columns: []Column{
			{Name: "campaign_id", Field: "campaignId", Kind: Text},
			{Name: "campaign_name", Field: "campaignName", Kind: Text},
			{Name: "status", Field: "status", Kind: Text},
			{Name: "channel_type", Field: "channelType", Kind: Text},
			{Name: "bidding_strategy_type", Field: "biddingStrategyType", Kind: Text},
			{Name: "budget_amount", Field: "budgetAmount", Kind: Decimal},
			{Name: "impressions", Field: "impressions", Kind: Integer},
			{Name: "clicks", Field: "clicks", Kind: Integer},
			{Name: "cost", Field: "cost", Kind: Decimal},
			{Name: "conversions", Field: "conversions", Kind: Decimal},
			{Name: "conversion_value", Field: "conversionValue", Kind: Decimal},
		},
	})

	register(Spec{
		Name:  AdGroups,
		Table: "ad_groups",
		Mode:  Upsert,
		Key:   []string{"ad_group_id"},
		Columns: []Column{
			{Name: "ad_group_id", Field: "adGroupId", Kind: Text},
			{Name: "ad_group_name", Field: "adGroupName", Kind: Text},
			{Name: "campaign_id", Field: "campaignId", Kind: Text},
			{Name: "campaign_name", Field: "campaignName", Kind: Text},
			{Name: "status", Field: "status", Kind: Text},
			{Name: "ad_group_type", Field: "type", Kind: Text},
			{Name: "cpc_bid", Field: "cpcBid", Kind: Decimal},
			{Name: "impressions", Field: "impressions", Kind: Integer},
			{Name: "clicks", Field: "clicks", Kind: Integer},
			{Name: "cost", Field: "cost", Kind: Decimal},
			{Name: "conversions", Field: "conversions", Kind: Decimal},
		},
	})

	// Ad and criterion ids are only unique within their ad group.
	register(Spec{
		Name:  Ads,
		Table: "ads",
		Mode:  Upsert,
		Key:   []string{"ad_group_id", "ad_id"},
		Columns: []Column{
			{Name: "ad_id", Field: "adId", Kind: Text},
			{Name: "ad_group_id", Field: "adGroupId", Kind: Text},
			{Name: "campaign_id", Field: "campaignId", Kind: Text},
			{Name: "ad_type", Field: "type", Kind: Text},
			{Name: "status", Field: "status", Kind: Text},
			{Name: "ad_strength", Field: "adStrength", Kind: Text},
			{Name: "final_url", Field: "finalUrl", Kind: Text},
			{Name: "headlines", Field: "headlines", Kind: Text},
			{Name: "descriptions", Field: "descriptions", Kind: Text},
			{Name: "impressions", Field: "impressions", Kind: Integer},
			{Name: "clicks", Field: "clicks", Kind: Integer},
			{Name: "cost", Field: "cost", Kind: Decimal},
			{Name: "conversions", Field: "conversions", Kind: Decimal},
		},
	})

	register(Spec{
		Name:  Keywords,
		Table: "keywords",
		Mode:  Upsert,
		Key:   []string{"ad_group_id", "keyword_id"},
		Columns: []Column{
			{Name: "keyword_id", Field: "keywordId", Kind: Text},
			{Name: "ad_group_id", Field: "adGroupId", Kind: Text},
			{Name: "campaign_id", Field: "campaignId", Kind: Text},
			{Name: "keyword_text", Field: "keywordText", Kind: Text},
			{Name: "match_type", Field: "matchType", Kind: Text},
			{Name: "status", Field: "status", Kind: Text},
			{Name: "quality_score", Field: "qualityScore", Kind: Integer},
			{Name: "cpc_bid", Field: "cpcBid", Kind: Decimal},
			{Name: "impressions", Field: "impressions", Kind: Integer},
			{Name: "clicks", Field: "clicks", Kind: Integer},
			{Name: "cost", Field: "cost", Kind: Decimal},
			{Name: "conversions", Field: "conversions", Kind: Decimal},
		},
	})

	register(Spec{
		Name:  SearchTerms,
		Table: "search_terms",
		Mode:  Append,
		Columns: []Column{
			{Name: "search_term", Field: "searchTerm", Kind: Text},
			{Name: "campaign_id", Field: "campaignId", Kind: Text},
			{Name: "ad_group_id", Field: "adGroupId", Kind: Text},
			{Name: "keyword_text", Field: "keywordText", Kind: Text},
			{Name: "match_type", Field: "matchType", Kind: Text},
			{Name: "impressions", Field: "impressions", Kind: Integer},
			{Name: "clicks", Field: "clicks", Kind: Integer},
			{Name: "cost", Field: "cost", Kind: Decimal},
			{Name: "conversions", Field: "conversions", Kind: Decimal},
		},
	})

	register(Spec{
		Name:  NegativeKeywords,
		Table: "negative_keywords",
		Mode:  Append,
		Columns: []Column{
			{Name: "keyword_text", Field: "keywordText", Kind: Text},
			{Name: "match_type", Field: "matchType", Kind: Text},
			{Name: "level", Field: "level", Kind: Text},
			{Name: "campaign_id", Field: "campaignId", Kind: Text},
			{Name: "ad_group_id", Field: "adGroupId", Kind: Text},
			{Name: "shared_set_name", Field: "sharedSetName", Kind: Text},
		},
	})

	register(Spec{
		Name:  Assets,
		Table: "assets",
		Mode:  Upsert,
		Key:   []string{"asset_id"},
		Columns: []Column{
			{Name: "asset_id", Field: "assetId", Kind: Text},
			{Name: "asset_type", Field: "type", Kind: Text},
			{Name: "asset_name", Field: "name", Kind: Text},
			{Name: "field_type", Field: "fieldType", Kind: Text},
			{Name: "text_content", Field: "text", Kind: Text},
			{Name: "final_url", Field: "finalUrl", Kind: Text},
			{Name: "performance_label", Field: "performanceLabel", Kind: Text},
			{Name: "impressions", Field: "impressions", Kind: Integer},
			{Name: "clicks", Field: "clicks", Kind: Integer},
			{Name: "cost", Field: "cost", Kind: Decimal},
		},
	})

	register(Spec{
		Name:  ConversionActions,
		Table: "conversion_actions",
		Mode:  Upsert,
		Key:   []string{"conversion_action_id"},
		Columns: []Column{
			{Name: "conversion_action_id", Field: "conversionActionId", Kind: Text},
			{Name: "name", Field: "name", Kind: Text},
			{Name: "category", Field: "category", Kind: Text},
			{Name: "action_type", Field: "type", Kind: Text},
			{Name: "status", Field: "status", Kind: Text},
			{Name: "counting_type", Field: "countingType", Kind: Text},
			{Name: "primary_for_goal", Field: "primaryForGoal", Kind: Text},
			{Name: "all_conversions", Field: "allConversions", Kind: Decimal},
			{Name: "all_conversions_value", Field: "allConversionsValue", Kind: Decimal},
		},
	})

	register(Spec{
		Name:  GeoPerformance,
		Table: "geo_performance",
		Mode:  Append,
		Columns: []Column{
			{Name: "campaign_id", Field: "campaignId", Kind: Text},
			{Name: "location_id", Field: "locationId", Kind: Text},
			{Name: "location_name", Field: "locationName", Kind: Text},
			{Name: "location_type", Field: "locationType", Kind: Text},
			{Name: "impressions", Field: "impressions", Kind: Integer},
			{Name: "clicks", Field: "clicks", Kind: Integer},
			{Name: "cost", Field: "cost", Kind: Decimal},
			{Name: "conversions", Field: "conversions", Kind: Decimal},
		},
	})

	register(Spec{
		Name:  DevicePerformance,
		Table: "device_performance",
		Mode:  Append,
		Columns: []Column{
			{Name: "campaign_id", Field: "campaignId", Kind: Text},
			{Name: "device", Field: "device", Kind: Text},
			{Name: "impressions", Field: "impressions", Kind: Integer},
			{Name: "clicks", Field: "clicks", Kind: Integer},
			{Name: "cost", Field: "cost", Kind: Decimal},
			{Name: "conversions", Field: "conversions", Kind: Decimal},
			{Name: "conversion_value", Field: "conversionValue", Kind: Decimal},
		},
	})
}
