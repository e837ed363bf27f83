package core

import "inventorycore/pkg/domain"

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewSerialUniqueRule())
	engine.Register(NewSingleStagedEditRule())
	engine.Register(NewSingleActiveAgreementRule())
	engine.Register(NewApprovalConsistencyRule())
	engine.Register(NewSnapshotOrderRule())
	return engine
}
