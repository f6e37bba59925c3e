package block

// BlockID идентификатор блока. Значение стабильно в пределах сохранения (см. IDMap).
type BlockID uint8

// ItemID идентификатор предмета
type ItemID uint16

// Два блока всегда присутствуют в реестре
const (
	AirBlockID   BlockID = 0
	StoneBlockID BlockID = 1

	AirName   = "Air"
	StoneName = "Stone"
)

// Порядок граней: X-, X+, Y-, Y+, Z-, Z+
const (
	FaceXNeg = iota
	FaceXPos
	FaceYNeg
	FaceYPos
	FaceZNeg
	FaceZPos
	FaceCount
)

// Texture координаты тайла в атласе (x, y), каждая в [0,16)
type Texture [2]int

// Pack упаковывает тайл в байт (x<<4)|y
func (t Texture) Pack() uint8 {
	return uint8((t[0]&0xF)<<4 | (t[1] & 0xF))
}

// Data свойства блока, которые использует генератор и мешер
type Data struct {
	Name        string
	DisplayName string

	AudioOnStep    string
	AudioOnDestroy string
	AudioOnPlace   string

	IsLight       bool
	IsTranslucent bool
	IsLiquid      bool

	ItemDrop ItemID

	Textures               [FaceCount]Texture
	ClimateOverlayTextures [FaceCount]Texture

	TexturesPacked       [FaceCount]uint8
	ClimateOverlayPacked [FaceCount]uint8
}

// ItemKind вид предмета
type ItemKind uint8

const (
	// ItemKindBlock предмет, который ставит блок
	ItemKindBlock ItemKind = iota
	// ItemKindMaterial предмет без действия при установке
	ItemKindMaterial
)

// ItemData описание предмета
type ItemData struct {
	Name        string
	DisplayName string
	Kind        ItemKind
	PlaceTarget BlockID
}

// OnPlace возвращает блок, который ставит предмет (Air, если предмет не ставится)
func (i *ItemData) OnPlace() BlockID {
	if i.Kind == ItemKindBlock {
		return i.PlaceTarget
	}
	return AirBlockID
}

func (d *Data) pack() {
	for f := 0; f < FaceCount; f++ {
		d.TexturesPacked[f] = d.Textures[f].Pack()

		if d.ClimateOverlayTextures[f] == (Texture{}) {
			d.ClimateOverlayTextures[f] = Texture{0, 1}
		}
		d.ClimateOverlayPacked[f] = d.ClimateOverlayTextures[f].Pack()
	}
}
