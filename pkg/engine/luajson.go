package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	lua "github.com/Shopify/go-lua"
)

// 表嵌套深度上限，防止循环引用导致无限递归
const maxJSONDepth = 64

var errUnencodable = errors.New("value cannot be encoded")

var jsonFunctions = []lua.RegistryFunction{
	{Name: "encode", Function: jsonEncode},
	{Name: "decode", Function: jsonDecode},
}

// openJSON 注册全局 json 表（json.encode / json.decode）
func openJSON(l *lua.State) {
	l.NewTable()
	lua.SetFunctions(l, jsonFunctions, 0)
	l.SetGlobal("json")
}

func jsonEncode(l *lua.State) int {
	v, err := toGoValue(l, 1, 0)
	if err != nil {
		lua.Errorf(l, "json.encode: %s", err.Error())
		return 0
	}
	data, err := json.Marshal(v)
	if err != nil {
		lua.Errorf(l, "json.encode: %s", err.Error())
		return 0
	}
	l.PushString(string(data))
	return 1
}

func jsonDecode(l *lua.State) int {
	s := lua.CheckString(l, 1)
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		lua.Errorf(l, "json.decode: %s", err.Error())
		return 0
	}
	pushGoValue(l, v)
	return 1
}

// toGoValue 把栈上 idx 处的 Lua 值转换为 encoding/json 可编码的 Go 值
//
// 函数、userdata 和协程返回 errUnencodable；调用方在对象中跳过它们，
// 在数组中编码为 null。
func toGoValue(l *lua.State, idx, depth int) (any, error) {
	idx = l.AbsIndex(idx)
	switch l.TypeOf(idx) {
	case lua.TypeNil, lua.TypeNone:
		return nil, nil
	case lua.TypeBoolean:
		return l.ToBoolean(idx), nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(idx)
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), nil
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, nil
		}
		return n, nil
	case lua.TypeString:
		s, _ := l.ToString(idx)
		return s, nil
	case lua.TypeTable:
		if depth >= maxJSONDepth {
			return nil, fmt.Errorf("table nesting exceeds %d levels", maxJSONDepth)
		}
		return tableToGo(l, idx, depth+1)
	default:
		return nil, errUnencodable
	}
}

func tableToGo(l *lua.State, idx, depth int) (any, error) {
	ints := map[int]any{}
	strs := map[string]any{}
	maxInt := 0
	mixed := false

	l.PushNil()
	for l.Next(idx) {
		v, err := toGoValue(l, -1, depth)
		skip := errors.Is(err, errUnencodable)
		if err != nil && !skip {
			l.Pop(2)
			return nil, err
		}

		switch l.TypeOf(-2) {
		case lua.TypeString:
			// 键是字符串时才能 ToString，否则会破坏 Next 的遍历
			if !skip {
				k, _ := l.ToString(-2)
				strs[k] = v
			}
		case lua.TypeNumber:
			n, _ := l.ToNumber(-2)
			if n >= 1 && n == math.Trunc(n) {
				ints[int(n)] = v
				maxInt = max(maxInt, int(n))
			} else {
				strs[fmt.Sprintf("%g", n)] = v
			}
		default:
			mixed = true
		}
		l.Pop(1)
	}
	if mixed {
		return nil, errors.New("table keys must be strings or numbers")
	}

	if len(strs) == 0 && len(ints) == maxInt {
		arr := make([]any, maxInt)
		for i := 1; i <= maxInt; i++ {
			arr[i-1] = ints[i]
		}
		return arr, nil
	}

	obj := make(map[string]any, len(strs)+len(ints))
	for k, v := range strs {
		obj[k] = v
	}
	keys := make([]int, 0, len(ints))
	for k := range ints {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		obj[fmt.Sprint(k)] = ints[k]
	}
	return obj, nil
}

// pushGoValue 把 json.Unmarshal 得到的值压入 Lua 栈
func pushGoValue(l *lua.State, v any) {
	switch x := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(x)
	case float64:
		l.PushNumber(x)
	case string:
		l.PushString(x)
	case []any:
		l.CreateTable(len(x), 0)
		for i, e := range x {
			if e == nil {
				continue
			}
			pushGoValue(l, e)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.CreateTable(0, len(x))
		for k, e := range x {
			pushGoValue(l, e)
			l.SetField(-2, k)
		}
	default:
		l.PushNil()
	}
}
