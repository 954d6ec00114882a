package evo

import (
	"fmt"
	"math"

	"revolver/internal/entropy"
)

// Node is one step of a pipeline.
type Node[C any] interface {
	Execute(gen entropy.Generator, pool *MatingPool[C])
}

// Pipeline runs its nodes in order each time it is executed.
type Pipeline[C any] struct {
	nodes []Node[C]
}

func NewPipeline[C any]() *Pipeline[C] {
	return &Pipeline[C]{}
}

// Then appends an operator step.
func (p *Pipeline[C]) Then(op Operator[C]) *Pipeline[C] {
	if op == nil {
		panic("evo: nil operator in pipeline")
	}
	p.nodes = append(p.nodes, operatorNode[C]{op: op})
	return p
}

// ThenNode appends any node, typically a ChanceNode.
func (p *Pipeline[C]) ThenNode(node Node[C]) *Pipeline[C] {
	if node == nil {
		panic("evo: nil node in pipeline")
	}
	p.nodes = append(p.nodes, node)
	return p
}

// ThenPipeline chains another pipeline after this one.
func (p *Pipeline[C]) ThenPipeline(next *Pipeline[C]) *Pipeline[C] {
	return p.ThenNode(next)
}

func (p *Pipeline[C]) Len() int {
	return len(p.nodes)
}

func (p *Pipeline[C]) Execute(gen entropy.Generator, pool *MatingPool[C]) {
	for _, node := range p.nodes {
		node.Execute(gen, pool)
	}
}

type operatorNode[C any] struct {
	op Operator[C]
}

func (n operatorNode[C]) Execute(gen entropy.Generator, pool *MatingPool[C]) {
	n.op.Apply(gen, pool)
}

// Choice is an operator with a relative probability weight.
type Choice[C any] struct {
	Operator Operator[C]
	Weight   float64
}

// ChanceNode executes exactly one of its choices per run, picked by weight.
type ChanceNode[C any] struct {
	choices []Choice[C]
	sum     float64
}

func NewChanceNode[C any]() *ChanceNode[C] {
	return &ChanceNode[C]{}
}

// Branch adds a weighted choice.
func (n *ChanceNode[C]) Branch(op Operator[C], weight float64) *ChanceNode[C] {
	if op == nil {
		panic("evo: nil operator in chance node")
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		panic(fmt.Sprintf("evo: invalid choice weight %v", weight))
	}
	n.choices = append(n.choices, Choice[C]{Operator: op, Weight: weight})
	n.sum += weight
	return n
}

func (n *ChanceNode[C]) Choices() []Choice[C] {
	out := make([]Choice[C], len(n.choices))
	copy(out, n.choices)
	return out
}

func (n *ChanceNode[C]) Execute(gen entropy.Generator, pool *MatingPool[C]) {
	if len(n.choices) == 0 {
		return
	}
	n.choices[n.pick(entropy.FloatInRange(gen, 0, n.sum))].Operator.Apply(gen, pool)
}

// pick walks the cumulative intervals in insertion order; a draw equal to the
// total lands on the last choice.
func (n *ChanceNode[C]) pick(draw float64) int {
	acc := 0.0
	for i, choice := range n.choices {
		next := acc + choice.Weight
		if acc <= draw && draw < next {
			return i
		}
		acc = next
	}
	return len(n.choices) - 1
}
