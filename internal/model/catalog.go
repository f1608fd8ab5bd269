package model

// DefaultCatalog returns the built-in activity catalog used by the seed
// command. A fresh slice is returned on every call.
func DefaultCatalog() []Activity {
	return []Activity{
		{ID: "contact-missions", Name: "Contact Missions", Category: CategoryMission, Variant: "base", Release: 2013,
			AvgTimeMin: 12, AvgPayout: 30000, Solo: true},
		{ID: "vip-work", Name: "VIP Work (CEO)", Category: CategoryMission, Variant: "base", Release: 2015,
			MinCooldown: 5, AvgTimeMin: 5, AvgPayout: 25000, Solo: true},
		{ID: "fleeca-job", Name: "The Fleeca Job", Category: CategoryHeist, Variant: "base", Release: 2015,
			AvgTimeMin: 30, AvgPayout: 150000},
		{ID: "pacific-standard", Name: "Pacific Standard", Category: CategoryHeist, Variant: "base", Release: 2015,
			AvgTimeMin: 45, AvgPayout: 1200000},
		{ID: "import-export", Name: "Import / Export", Category: CategoryBusiness, Variant: "base", Release: 2016,
			MinCooldown: 20, AvgTimeMin: 15, AvgPayout: 80000, Solo: true},
		{ID: "mc-coke", Name: "MC Cocaine Lockup", Category: CategoryPassiveBusiness, Variant: "base", Release: 2016,
			ResupplyMin: 150, MaxStock: 5, AvgPayout: 420000, Passive: true, Solo: true, Boostable: true},
		{ID: "bunker", Name: "Bunker (Gunrunning)", Category: CategoryPassiveBusiness, Variant: "base", Release: 2017,
			ResupplyMin: 140, MaxStock: 5, AvgPayout: 1050000, Passive: true, Solo: true, Boostable: true},
		{ID: "nightclub", Name: "Nightclub Warehouse", Category: CategoryPassiveBusiness, Variant: "base", Release: 2018,
			AvgTimeMin: 5, AvgPayout: 1800000, Passive: true, Solo: true, Boostable: true},
		{ID: "nightclub-safe", Name: "Nightclub Safe", Category: CategorySafe, Variant: "base", Release: 2018,
			AvgTimeMin: 48, AvgPayout: 250000, Passive: true, Solo: true, Tags: []string{"safe"}},
		{ID: "casino-heist", Name: "Diamond Casino Heist", Category: CategoryHeist, Variant: "base", Release: 2019,
			MinCooldown: 144, AvgTimeMin: 90, AvgPayout: 2300000},
		{ID: "cayo-perico", Name: "Cayo Perico (Solo)", Category: CategoryHeist, Variant: "base", Release: 2020,
			MinCooldown: 144, AvgTimeMin: 60, AvgPayout: 1100000, Solo: true, Boostable: true},
	}
}

// DedupeActivities keeps the last occurrence of every id, preserving the
// order in which ids first appeared.
func DedupeActivities(in []Activity) []Activity {
	index := make(map[string]int, len(in))
	out := make([]Activity, 0, len(in))
	for _, a := range in {
		if i, ok := index[a.ID]; ok {
			out[i] = a
			continue
		}
		index[a.ID] = len(out)
		out = append(out, a)
	}
	return out
}
