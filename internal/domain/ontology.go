package domain

import "sort"

type RelationshipCategory string

const (
	CategoryCausal     RelationshipCategory = "causal"
	CategorySolution   RelationshipCategory = "solution"
	CategoryContext    RelationshipCategory = "context"
	CategoryLearning   RelationshipCategory = "learning"
	CategorySimilarity RelationshipCategory = "similarity"
	CategoryTemporal   RelationshipCategory = "temporal"
	CategoryWorkflow   RelationshipCategory = "workflow"
	CategoryQuality    RelationshipCategory = "quality"
	CategoryEvaluation RelationshipCategory = "evaluation"
	CategoryReference  RelationshipCategory = "reference"
	CategoryOwnership  RelationshipCategory = "ownership"
)

// RelationshipDef describes one entry in the base ontology.
type RelationshipDef struct {
	Description string
	Category    RelationshipCategory
	Symmetric   bool
	Transitive  bool
	Inverse     string
}

// RelationshipFallback is used when LLM classification fails or returns an
// unknown type.
const RelationshipFallback = "related_to"

// BaseOntology is the hard-coded relationship registry. Association
// relationships are validated against it.
var BaseOntology = map[string]RelationshipDef{
	// causal
	"causes":       {Description: "source directly causes target", Category: CategoryCausal, Transitive: true, Inverse: "caused_by"},
	"caused_by":    {Description: "source is a consequence of target", Category: CategoryCausal, Transitive: true, Inverse: "causes"},
	"leads_to":     {Description: "source eventually leads to target", Category: CategoryCausal, Transitive: true},
	"results_from": {Description: "source is an outcome of target", Category: CategoryCausal},
	"enables":      {Description: "source makes target possible", Category: CategoryCausal},
	"prevents":     {Description: "source stops target from happening", Category: CategoryCausal},
	"triggers":     {Description: "source initiates target", Category: CategoryCausal},

	// solution
	"solves":         {Description: "source is a solution to the problem in target", Category: CategorySolution},
	"addresses":      {Description: "source partially handles the problem in target", Category: CategorySolution},
	"mitigates":      {Description: "source reduces the impact of target", Category: CategorySolution},
	"workaround_for": {Description: "source is a temporary workaround for target", Category: CategorySolution},
	"alternative_to": {Description: "source is an alternative approach to target", Category: CategorySolution, Symmetric: true},
	"implements":     {Description: "source implements the idea or plan in target", Category: CategorySolution},

	// context
	"part_of":        {Description: "source is a component or fragment of target", Category: CategoryContext, Transitive: true, Inverse: "contains"},
	"contains":       {Description: "source contains target as a component", Category: CategoryContext, Transitive: true, Inverse: "part_of"},
	"example_of":     {Description: "source is a concrete example of target", Category: CategoryContext},
	"instance_of":    {Description: "source is an instance of the concept in target", Category: CategoryContext},
	"context_for":    {Description: "source provides background context for target", Category: CategoryContext},
	"background_for": {Description: "source is prior background for target", Category: CategoryContext},

	// learning
	"learned_from": {Description: "source knowledge was learned from target", Category: CategoryLearning},
	"derived_from": {Description: "source was derived from target", Category: CategoryLearning, Inverse: "derives"},
	"derives":      {Description: "source gives rise to the derived target", Category: CategoryLearning, Inverse: "derived_from"},
	"generalizes":  {Description: "source is a generalization of target", Category: CategoryLearning, Inverse: "specializes"},
	"specializes":  {Description: "source is a special case of target", Category: CategoryLearning, Inverse: "generalizes"},
	"corrects":     {Description: "source corrects an error in target", Category: CategoryLearning},
	"reinforces":   {Description: "source reinforces the belief in target", Category: CategoryLearning},

	// similarity
	"related_to":    {Description: "source is generally related to target", Category: CategorySimilarity, Symmetric: true},
	"similar_to":    {Description: "source is semantically similar to target", Category: CategorySimilarity, Symmetric: true},
	"duplicate_of":  {Description: "source duplicates the content of target", Category: CategorySimilarity, Symmetric: true},
	"variant_of":    {Description: "source is a variant of target", Category: CategorySimilarity},
	"analogous_to":  {Description: "source is analogous to target", Category: CategorySimilarity, Symmetric: true},
	"same_topic_as": {Description: "source covers the same topic as target", Category: CategorySimilarity, Symmetric: true},

	// temporal
	"precedes":      {Description: "source happened before target", Category: CategoryTemporal, Transitive: true, Inverse: "follows"},
	"follows":       {Description: "source happened after target", Category: CategoryTemporal, Transitive: true, Inverse: "precedes"},
	"concurrent_with": {Description: "source happened at the same time as target", Category: CategoryTemporal, Symmetric: true},
	"supersedes":    {Description: "source replaces the outdated target", Category: CategoryTemporal, Inverse: "superseded_by"},
	"superseded_by": {Description: "source is replaced by target", Category: CategoryTemporal, Inverse: "supersedes"},
	"evolved_into":  {Description: "source evolved over time into target", Category: CategoryTemporal},

	// workflow
	"depends_on":   {Description: "source requires target to function", Category: CategoryWorkflow, Transitive: true, Inverse: "required_for"},
	"required_for": {Description: "source is required by target", Category: CategoryWorkflow, Inverse: "depends_on"},
	"blocks":       {Description: "source blocks progress on target", Category: CategoryWorkflow},
	"step_of":      {Description: "source is a step of the procedure in target", Category: CategoryWorkflow},
	"produces":     {Description: "source produces the artifact in target", Category: CategoryWorkflow, Inverse: "consumed_by"},
	"consumes":     {Description: "source consumes the artifact in target", Category: CategoryWorkflow},
	"consumed_by":  {Description: "source is consumed by target", Category: CategoryWorkflow, Inverse: "produces"},

	// quality
	"improves":    {Description: "source improves the quality of target", Category: CategoryQuality},
	"degrades":    {Description: "source degrades the quality of target", Category: CategoryQuality},
	"validates":   {Description: "source validates the claim in target", Category: CategoryQuality},
	"invalidates": {Description: "source invalidates the claim in target", Category: CategoryQuality},
	"measures":    {Description: "source measures the property in target", Category: CategoryQuality},
	"optimizes":   {Description: "source optimizes the process in target", Category: CategoryQuality},

	// evaluation
	"contradicts": {Description: "source contradicts the claim in target", Category: CategoryEvaluation, Symmetric: true},
	"supports":    {Description: "source supports the claim in target", Category: CategoryEvaluation},
	"refutes":     {Description: "source refutes the claim in target", Category: CategoryEvaluation},
	"confirms":    {Description: "source confirms the claim in target", Category: CategoryEvaluation},
	"questions":   {Description: "source casts doubt on target", Category: CategoryEvaluation},
	"qualifies":   {Description: "source narrows the scope of the claim in target", Category: CategoryEvaluation},

	// reference
	"references":    {Description: "source refers to target", Category: CategoryReference, Inverse: "referenced_by"},
	"referenced_by": {Description: "source is referred to by target", Category: CategoryReference, Inverse: "references"},
	"documents":     {Description: "source documents the subject of target", Category: CategoryReference, Inverse: "documented_by"},
	"documented_by": {Description: "source is documented by target", Category: CategoryReference, Inverse: "documents"},
	"explains":      {Description: "source explains target", Category: CategoryReference, Inverse: "explained_by"},
	"explained_by":  {Description: "source is explained by target", Category: CategoryReference, Inverse: "explains"},

	// ownership
	"owned_by":    {Description: "source is owned by the party in target", Category: CategoryOwnership},
	"authored_by": {Description: "source was authored by the party in target", Category: CategoryOwnership},
	"used_by":     {Description: "source is used by the party in target", Category: CategoryOwnership},
	"applies_to":  {Description: "source applies to the subject of target", Category: CategoryOwnership},
	"belongs_to":  {Description: "source belongs to the group in target", Category: CategoryOwnership},
}

// CausalRelationships lists the types used by causal-chain traversal.
func CausalRelationships() []string {
	var types []string
	for name, def := range BaseOntology {
		if def.Category == CategoryCausal {
			types = append(types, name)
		}
	}
	sort.Strings(types)
	return types
}

// SolutionRelationships lists the edge types that mark a memory as solving a
// problem.
var SolutionRelationships = []string{"solves", "addresses"}

func ValidRelationship(r string) bool {
	_, ok := BaseOntology[r]
	return ok
}

// RelationshipTypes returns all registered relationship types sorted.
func RelationshipTypes() []string {
	types := make([]string, 0, len(BaseOntology))
	for name := range BaseOntology {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
