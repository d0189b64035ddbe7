package material

func rec(id, name, heat string, su, sy, e, g, mu, ro float64) Record {
	return NewRecord(id, name, heat).
		With(PropTensileStrength, su).
		With(PropYieldStrength, sy).
		With(PropElasticModulus, e).
		With(PropShearModulus, g).
		With(PropPoissonsRatio, mu).
		With(PropDensity, ro)
}

// sampleCatalog is a small slice of the SAE steel catalog.
func sampleCatalog() *Catalog {
	return NewCatalog([]Record{
		rec("1", "Steel SAE 1015", "as-rolled", 421, 314, 207000, 79000, 0.3, 7860),
		rec("2", "Steel SAE 1015", "normalized", 424, 324, 207000, 79000, 0.3, 7860),
		rec("3", "Steel SAE 1020", "as-rolled", 448, 331, 207000, 79000, 0.3, 7860),
		rec("4", "Steel SAE 1040", "annealed", 519, 353, 207000, 79000, 0.3, 7860),
		rec("5", "Steel SAE 4140", "tempered", 1020, 655, 205000, 80000, 0.29, 7850),
		rec("6", "Steel SAE 4340", "annealed", 745, 470, 205000, 80000, 0.29, 7850),
	}, WithSource("test"))
}

func allWeights(w float64) RequirementSpec {
	req := DefaultRequirements()
	for p, r := range req {
		r.Weight = w
		req[p] = r
	}
	return req
}

func exactRequirements(r Record, weight float64) RequirementSpec {
	req := make(RequirementSpec, NumProperties)
	for _, p := range Properties {
		req[p] = Requirement{Target: r.ValueOrZero(p), Weight: weight}
	}
	return req
}
