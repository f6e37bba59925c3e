package biome

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Kind вид декоратора. Новые виды добавляются в перечисление и таблицу generators.
type Kind uint8

const (
	KindSmallTree Kind = iota
	kindCount
)

var kindNames = [kindCount]string{
	KindSmallTree: "small_tree",
}

// String возвращает имя вида, как оно записано в файлах данных
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind разбирает имя вида декоратора
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("неизвестный вид декоратора %q", s)
}

// Stamper рабочий буфер генератора, в который декораторы пишут блоки
type Stamper interface {
	// Column ставит столбец блоков от pos.Z до pos.Z+height включительно
	Column(pos vec.Vec3, height int, b block.BlockID)
	// Crown ставит сужающуюся крону радиуса radius, начиная с pos
	Crown(pos vec.Vec3, radius int, b block.BlockID)
}

// SmallTree параметры небольшого дерева: ствол и крона
type SmallTree struct {
	Log             block.BlockID
	Leaves          block.BlockID
	Height          int
	HeightVariation int
}

// Decorator объект, расставляемый по поверхности в своём климатическом радиусе
type Decorator struct {
	Name         string
	Kind         Kind
	Temperature  float64
	Humidity     float64
	ClimateRange float64
	Frequency    float64

	SmallTree SmallTree
}

var generators = [kindCount]func(d *Decorator, buf Stamper, pos vec.Vec3, hash uint32){
	KindSmallTree: generateSmallTree,
}

// Generate ставит декоратор в буфер. hash задаёт вариацию экземпляра.
func (d *Decorator) Generate(buf Stamper, pos vec.Vec3, hash uint32) {
	if d.Kind >= kindCount {
		panic(fmt.Sprintf("декоратор %s: вид %v не поддерживается", d.Name, d.Kind))
	}
	generators[d.Kind](d, buf, pos, hash)
}

const smallTreeCrownRadius = 2

func generateSmallTree(d *Decorator, buf Stamper, pos vec.Vec3, hash uint32) {
	t := &d.SmallTree

	height := t.Height
	if t.HeightVariation > 0 {
		height += int(hash % uint32(t.HeightVariation))
	}

	buf.Column(pos, height, t.Log)
	buf.Crown(vec.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z + height}, smallTreeCrownRadius, t.Leaves)
}
