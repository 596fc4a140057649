package ontology

// DefaultCatalog returns the compiled-in concept catalog used when no catalog
// file is configured. The catalog covers the personal, work, health, finance,
// education, social, entertainment, and travel domains.
//
// The synonym and example lists are scoring data, not documentation: adding a
// synonym changes classifier behavior (each occurrence adds 0.8 to the score).
func DefaultCatalog() *Catalog {
	concepts := []Concept{
		{
			ID:          "personal.identity",
			Name:        "identity",
			Domain:      "personal",
			Category:    "identity",
			Description: "Who the user is: name, self-description, how they identify.",
			Properties: []Property{
				{Name: "name", ValueType: ValueString},
			},
			Synonyms: []string{"name", "my name", "my name is", "call me", "i am called", "who i am"},
			Examples: []string{"my name is alice smith", "everyone calls me bob", "i go by sam"},
		},
		{
			ID:          "personal.preference",
			Name:        "preference",
			Domain:      "personal",
			Category:    "preferences",
			Description: "Likes and dislikes: food, activities, styles.",
			Properties: []Property{
				{Name: "preference_type", ValueType: ValueString, Constraints: Constraints{Values: []string{"like", "dislike"}}},
				{Name: "subject", ValueType: ValueString},
			},
			Synonyms: []string{"like", "love", "enjoy", "prefer", "favorite", "hate", "dislike", "avoid"},
			Examples: []string{"i love italian food", "i don't like loud music", "my favorite color is green"},
		},
		{
			ID:          "personal.interest",
			Name:        "interest",
			Domain:      "personal",
			Category:    "interests",
			Description: "Hobbies, sports, and recurring leisure activities.",
			Properties: []Property{
				{Name: "subject", ValueType: ValueString},
				{Name: "preference_type", ValueType: ValueString, Constraints: Constraints{Values: []string{"like", "dislike"}}},
			},
			Synonyms: []string{"hobby", "hobbies", "interest", "sport", "sports", "play", "playing"},
			Examples: []string{"i play football on weekends", "my hobbies are reading and chess", "i like tennis"},
		},
		{
			ID:          "personal.relationship",
			Name:        "relationship",
			Domain:      "personal",
			Category:    "relationships",
			Description: "Family, friends, and other people close to the user.",
			Properties: []Property{
				{Name: "person", ValueType: ValueString},
				{Name: "relation", ValueType: ValueString},
			},
			Synonyms: []string{"my wife", "my husband", "my partner", "my friend", "my brother", "my sister", "my mother", "my father", "my son", "my daughter"},
			Examples: []string{"my sister lives in portland", "my friend dave is visiting"},
		},
		{
			ID:          "personal.location",
			Name:        "location",
			Domain:      "personal",
			Category:    "location",
			Description: "Where the user lives or is based.",
			Properties: []Property{
				{Name: "location", ValueType: ValueString},
			},
			Synonyms: []string{"live in", "based in", "located in", "moved to", "my city", "hometown"},
			Examples: []string{"i live in berlin", "i'm based in austin now"},
		},
		{
			ID:          "work.employment",
			Name:        "employment",
			Domain:      "work",
			Category:    "employment",
			Description: "Employer, role, and professional position.",
			Properties: []Property{
				{Name: "company", ValueType: ValueString},
				{Name: "role", ValueType: ValueString},
				{Name: "domain", ValueType: ValueString},
			},
			Synonyms: []string{"work at", "work for", "my job", "my role", "my company", "employer", "employed"},
			Examples: []string{"i work at acme corp", "my job is backend development", "my role is product manager"},
		},
		{
			ID:          "work.meeting",
			Name:        "meeting",
			Domain:      "work",
			Category:    "meetings",
			Description: "Scheduled discussions: syncs, standups, reviews, calls.",
			Properties: []Property{
				{Name: "urgency", ValueType: ValueString, Constraints: Constraints{Values: []string{"low", "medium", "high", "critical"}}},
				{Name: "time", ValueType: ValueString},
			},
			Synonyms: []string{"meeting", "sync", "team sync", "standup", "1:1", "review", "call with"},
			Examples: []string{"team sync tomorrow morning", "standup moved to 10am", "quarterly review with the board"},
		},
		{
			ID:          "work.project",
			Name:        "project",
			Domain:      "work",
			Category:    "projects",
			Description: "Named initiatives with scope and deadlines.",
			Properties: []Property{
				{Name: "urgency", ValueType: ValueString, Constraints: Constraints{Values: []string{"low", "medium", "high", "critical"}}},
				{Name: "deadline", ValueType: ValueDate},
			},
			Synonyms: []string{"project", "deadline", "milestone", "launch", "release", "sprint"},
			Examples: []string{"the migration project ships next month", "sprint deadline is friday"},
		},
		{
			ID:          "work.time_tracking",
			Name:        "time tracking",
			Domain:      "work",
			Category:    "time",
			Description: "Time spent on tasks and activities.",
			Properties: []Property{
				{Name: "duration_minutes", ValueType: ValueNumber},
			},
			Synonyms: []string{"spent", "tracked", "logged", "hours on", "minutes on"},
			Examples: []string{"spent 2 hours on the report", "logged 45 minutes of code review"},
		},
		{
			ID:          "health.wellness",
			Name:        "wellness",
			Domain:      "health",
			Category:    "wellness",
			Description: "Exercise, sleep, diet, and general wellbeing.",
			Properties: []Property{
				{Name: "activity", ValueType: ValueString},
				{Name: "duration_minutes", ValueType: ValueNumber},
			},
			Synonyms: []string{"workout", "exercise", "gym", "run", "sleep", "diet", "doctor"},
			Examples: []string{"ran 5k this morning", "slept badly last night", "dentist appointment thursday"},
		},
		{
			ID:          "finance.money",
			Name:        "money",
			Domain:      "finance",
			Category:    "money",
			Description: "Budgets, purchases, subscriptions, and bills.",
			Properties: []Property{
				{Name: "amount", ValueType: ValueNumber},
			},
			Synonyms: []string{"budget", "paid", "bought", "subscription", "invoice", "salary", "rent"},
			Examples: []string{"rent went up to 1400", "cancelled the streaming subscription"},
		},
		{
			ID:          "education.learning",
			Name:        "learning",
			Domain:      "education",
			Category:    "learning",
			Description: "Courses, studies, skills being acquired.",
			Properties: []Property{
				{Name: "subject", ValueType: ValueString},
			},
			Synonyms: []string{"learning", "studying", "course", "class", "degree", "certification"},
			Examples: []string{"started a machine learning course", "studying for the networking exam"},
		},
		{
			ID:          "social.event",
			Name:        "social event",
			Domain:      "social",
			Category:    "events",
			Description: "Gatherings, parties, and plans with other people.",
			Properties: []Property{
				{Name: "time", ValueType: ValueString},
			},
			Synonyms: []string{"party", "dinner with", "birthday", "wedding", "hang out", "catch up"},
			Examples: []string{"dinner with maria on saturday", "ben's birthday party next week"},
		},
		{
			ID:          "entertainment.media",
			Name:        "media",
			Domain:      "entertainment",
			Category:    "media",
			Description: "Books, films, shows, games, and music.",
			Properties: []Property{
				{Name: "title", ValueType: ValueString},
				{Name: "preference_type", ValueType: ValueString, Constraints: Constraints{Values: []string{"like", "dislike"}}},
			},
			Synonyms: []string{"watching", "reading", "movie", "series", "album", "game", "podcast"},
			Examples: []string{"finished reading dune", "started watching a new series"},
		},
		{
			ID:          "travel.trip",
			Name:        "trip",
			Domain:      "travel",
			Category:    "trips",
			Description: "Trips, flights, and travel plans.",
			Properties: []Property{
				{Name: "destination", ValueType: ValueString},
				{Name: "time", ValueType: ValueString},
			},
			Synonyms: []string{"trip", "flight", "travelling", "traveling", "vacation", "holiday", "visiting"},
			Examples: []string{"flying to lisbon in march", "planning a vacation to japan"},
		},
	}

	rels := []Relationship{
		{SourceID: "work.meeting", TargetID: "work.project", Type: RelRelatesTo, Strength: 0.6, Bidirectional: true},
		{SourceID: "work.employment", TargetID: "work.project", Type: RelInvolves, Strength: 0.5},
		{SourceID: "work.time_tracking", TargetID: "work.project", Type: RelMeasures, Strength: 0.7},
		{SourceID: "personal.interest", TargetID: "personal.preference", Type: RelRelatesTo, Strength: 0.8, Bidirectional: true},
		{SourceID: "health.wellness", TargetID: "personal.interest", Type: RelInfluences, Strength: 0.4},
		{SourceID: "travel.trip", TargetID: "social.event", Type: RelRelatesTo, Strength: 0.3, Bidirectional: true},
		{SourceID: "personal.identity", TargetID: "work.employment", Type: RelRelatesTo, Strength: 0.5, Bidirectional: true},
	}

	cat, err := NewCatalog(concepts, rels)
	if err != nil {
		// The compiled-in catalog is validated by tests; a failure here is a
		// programmer error.
		panic("ontology: default catalog invalid: " + err.Error())
	}
	return cat
}
