// Package draft holds the editable copy of a community's settings.
//
// Rules live in two layers: the edit slots shown to the operator, which
// always contain at least one entry and may contain blanks, and the
// persisted projection returned by Rules, which never contains blanks.
package draft

import (
	"errors"
	"strings"

	"powerhause/internal/gateway"
	"powerhause/internal/model"
)

// Field 草稿中可编辑的标量字段（逻辑名）
type Field string

const (
	FieldName             Field = "name"
	FieldPurpose          Field = "purpose"
	FieldModerationLevel  Field = "moderationLevel"
	FieldEngagementStyle  Field = "engagementStyle"
	FieldPostingFrequency Field = "postingFrequency"
	FieldTelegramToken    Field = "telegramToken"
	FieldTelegramChatID   Field = "telegramChatId"
)

var (
	ErrUnknownField = errors.New("unknown draft field")
	ErrRuleIndex    = errors.New("rule index out of range")
)

const opSave = "save community"

type Draft struct {
	fields map[Field]string
	slots  []string
}

// New 返回一个带默认设置的空草稿
func New() *Draft {
	d := &Draft{}
	d.Load(&model.Community{})
	return d
}

// Load 用服务端实体初始化草稿；实体没有规则时放入一个空白编辑槽
func (d *Draft) Load(c *model.Community) {
	src := *c
	src.ApplyDefaults()
	d.fields = map[Field]string{
		FieldName:             src.Name,
		FieldPurpose:          src.Purpose,
		FieldModerationLevel:  src.ModerationLevel,
		FieldEngagementStyle:  src.EngagementStyle,
		FieldPostingFrequency: src.PostingFrequency,
		FieldTelegramToken:    src.TelegramToken,
		FieldTelegramChatID:   src.TelegramChatID,
	}
	d.slots = append([]string(nil), src.Rules...)
	if len(d.slots) == 0 {
		d.slots = []string{""}
	}
}

// SetField 原地更新标量字段，不做校验
func (d *Draft) SetField(name Field, value string) error {
	if _, ok := d.fields[name]; !ok {
		return ErrUnknownField
	}
	d.fields[name] = value
	return nil
}

func (d *Draft) Field(name Field) string {
	return d.fields[name]
}

// Values 返回全部标量字段的副本
func (d *Draft) Values() map[Field]string {
	out := make(map[Field]string, len(d.fields))
	for k, v := range d.fields {
		out[k] = v
	}
	return out
}

func (d *Draft) SetRule(index int, value string) error {
	if index < 0 || index >= len(d.slots) {
		return ErrRuleIndex
	}
	d.slots[index] = value
	return nil
}

// AddRule 追加一个空白编辑槽
func (d *Draft) AddRule() {
	d.slots = append(d.slots, "")
}

// RemoveRule removes the slot at index. It refuses, returning false, when
// only one slot remains or the index is out of range.
func (d *Draft) RemoveRule(index int) bool {
	if len(d.slots) <= 1 || index < 0 || index >= len(d.slots) {
		return false
	}
	d.slots = append(d.slots[:index:index], d.slots[index+1:]...)
	return true
}

// Slots 返回编辑视图的副本（至少一个槽）
func (d *Draft) Slots() []string {
	return append([]string(nil), d.slots...)
}

// Rules 返回将被持久化的规则：过滤掉空白项
func (d *Draft) Rules() []string {
	return model.CleanRules(d.slots)
}

func (d *Draft) Credential() model.Credential {
	return model.Credential{
		Token:  d.fields[FieldTelegramToken],
		ChatID: d.fields[FieldTelegramChatID],
	}
}

// Payload projects the draft onto the gateway's update payload. It fails
// locally with a gateway.ErrValidation error when the name trims to empty
// or a field breaks its limits, so Save never reaches the gateway.
func (d *Draft) Payload() (*model.UpdateFields, error) {
	fields := &model.UpdateFields{
		Name:             strings.TrimSpace(d.fields[FieldName]),
		Purpose:          strings.TrimSpace(d.fields[FieldPurpose]),
		Rules:            d.Rules(),
		ModerationLevel:  d.fields[FieldModerationLevel],
		EngagementStyle:  d.fields[FieldEngagementStyle],
		PostingFrequency: d.fields[FieldPostingFrequency],
		TelegramToken:    strings.TrimSpace(d.fields[FieldTelegramToken]),
		TelegramChatID:   strings.TrimSpace(d.fields[FieldTelegramChatID]),
	}
	if err := model.Validate(fields); err != nil {
		return nil, gateway.NewValidation(opSave, err.Error())
	}
	return fields, nil
}
