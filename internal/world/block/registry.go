package block

import (
	"errors"
	"fmt"
	"sort"
)

// ErrTooManyBlocks возвращается, когда все 256 идентификаторов блоков заняты
var ErrTooManyBlocks = errors.New("исчерпаны идентификаторы блоков")

// Registry неизменяемый реестр блоков и предметов. Создаётся один раз через
// Builder и передаётся генератору, мешеру и миру по указателю.
type Registry struct {
	blocks  [256]Data
	present [256]bool

	translucent [256]bool
	liquid      [256]bool
	light       [256]bool

	items []ItemData

	ids *IDMap
}

// Get возвращает данные блока. Неизвестный идентификатор ведёт себя как непрозрачный блок.
func (r *Registry) Get(id BlockID) *Data {
	return &r.blocks[id]
}

// Has проверяет, зарегистрирован ли блок
func (r *Registry) Has(id BlockID) bool {
	return r.present[id]
}

// IsTranslucent быстрый доступ к флагу прозрачности
func (r *Registry) IsTranslucent(id BlockID) bool { return r.translucent[id] }

// IsLiquid быстрый доступ к флагу жидкости
func (r *Registry) IsLiquid(id BlockID) bool { return r.liquid[id] }

// IsLight быстрый доступ к флагу источника света
func (r *Registry) IsLight(id BlockID) bool { return r.light[id] }

// Lookup возвращает идентификатор блока по имени
func (r *Registry) Lookup(name string) (BlockID, bool) {
	id, ok := r.ids.Blocks[name]
	return id, ok
}

// MustLookup как Lookup, но паникует при отсутствии блока
func (r *Registry) MustLookup(name string) BlockID {
	id, ok := r.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("блок %q не зарегистрирован", name))
	}
	return id
}

// Item возвращает данные предмета или nil
func (r *Registry) Item(id ItemID) *ItemData {
	if int(id) >= len(r.items) || r.items[id].Name == "" {
		return nil
	}
	return &r.items[id]
}

// LookupItem возвращает идентификатор предмета по имени
func (r *Registry) LookupItem(name string) (ItemID, bool) {
	id, ok := r.ids.Items[name]
	return id, ok
}

// BlockCount количество зарегистрированных блоков
func (r *Registry) BlockCount() int {
	return len(r.ids.Blocks)
}

// ItemCount количество зарегистрированных предметов
func (r *Registry) ItemCount() int {
	return len(r.ids.Items)
}

// IDMap возвращает карту идентификаторов для записи в сохранение
func (r *Registry) IDMap() *IDMap {
	return r.ids
}

// Builder собирает реестр. Не потокобезопасен; используется только при запуске.
type Builder struct {
	ids    *IDMap
	blocks map[BlockID]Data
	items  map[ItemID]ItemData
}

// NewBuilder создаёт сборщик поверх карты идентификаторов сохранения (nil: новая карта)
func NewBuilder(ids *IDMap) *Builder {
	if ids == nil {
		ids = NewIDMap()
	}
	b := &Builder{
		ids:    ids,
		blocks: make(map[BlockID]Data),
		items:  make(map[ItemID]ItemData),
	}
	b.blocks[AirBlockID] = Data{Name: AirName, DisplayName: AirName}
	b.blocks[StoneBlockID] = Data{Name: StoneName, DisplayName: StoneName}
	return b
}

// AddBlock регистрирует блок. Идентификатор берётся из карты или выделяется новый.
func (b *Builder) AddBlock(d Data) (BlockID, error) {
	if d.Name == "" {
		return 0, fmt.Errorf("у блока не задано имя")
	}

	id, ok := b.ids.Blocks[d.Name]
	if !ok {
		next, err := b.ids.nextBlockID()
		if err != nil {
			return 0, fmt.Errorf("блок %s: %w", d.Name, err)
		}
		id = next
		b.ids.Blocks[d.Name] = id
	}

	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	b.blocks[id] = d
	return id, nil
}

// AddItem регистрирует предмет
func (b *Builder) AddItem(d ItemData) (ItemID, error) {
	if d.Name == "" {
		return 0, fmt.Errorf("у предмета не задано имя")
	}

	id, ok := b.ids.Items[d.Name]
	if !ok {
		id = b.ids.nextItemID()
		b.ids.Items[d.Name] = id
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	b.items[id] = d
	return id, nil
}

// Build создаёт предметы-блоки для каждого блока без предмета и возвращает реестр
func (b *Builder) Build() *Registry {
	r := &Registry{ids: b.ids}

	blockIDs := make([]int, 0, len(b.blocks))
	for id := range b.blocks {
		blockIDs = append(blockIDs, int(id))
	}
	sort.Ints(blockIDs)

	for _, raw := range blockIDs {
		id := BlockID(raw)
		d := b.blocks[id]

		itemID, ok := b.ids.Items[d.Name]
		if !ok {
			itemID = b.ids.nextItemID()
			b.ids.Items[d.Name] = itemID
		}
		if _, defined := b.items[itemID]; !defined {
			b.items[itemID] = ItemData{
				Name:        d.Name,
				DisplayName: d.DisplayName,
				Kind:        ItemKindBlock,
				PlaceTarget: id,
			}
		}
		d.ItemDrop = itemID
		d.pack()

		r.blocks[id] = d
		r.present[id] = true
		r.translucent[id] = d.IsTranslucent
		r.liquid[id] = d.IsLiquid
		r.light[id] = d.IsLight
	}

	// Блоки из карты, для которых нет данных (контент удалён), остаются непрозрачными
	for name, id := range b.ids.Blocks {
		if !r.present[id] {
			r.blocks[id] = Data{Name: name, DisplayName: name}
			r.blocks[id].pack()
		}
	}

	maxItem := -1
	for id := range b.items {
		if int(id) > maxItem {
			maxItem = int(id)
		}
	}
	r.items = make([]ItemData, maxItem+1)
	for id, d := range b.items {
		r.items[id] = d
	}

	return r
}
