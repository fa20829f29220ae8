package web

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/gridconsole/internal/grid"
	"github.com/JonMunkholm/gridconsole/internal/store"
)

type pageView struct {
	Tables []string
	State  grid.State
	Alert  *grid.UserMessage
}

// gridPage renders the whole console: table picker, grid and create form.
func gridPage(v pageView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<title>Grid Console</title><style>` + pageCSS + `</style></head><body>`)

		b.WriteString(`<nav>`)
		for _, name := range v.Tables {
			class := ""
			if name == v.State.Table {
				class = ` class="active"`
			}
			fmt.Fprintf(&b, `<a href="/?table=%s"%s>%s</a>`,
				url.QueryEscape(name), class, templ.EscapeString(name))
		}
		b.WriteString(`</nav><main>`)

		b.WriteString(`<div id="alert">`)
		if v.Alert != nil {
			writeAlert(&b, *v.Alert)
		}
		b.WriteString(`</div>`)

		if v.State.Table == "" {
			b.WriteString(`<p class="hint">Select a table.</p>`)
		} else {
			writeGrid(&b, v.State)
			writeCreateForm(&b, v.State)
		}

		b.WriteString(`</main><script>` + pageJS + `</script></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// errorAlert renders a standalone error fragment.
func errorAlert(msg grid.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		writeAlert(&b, msg)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeAlert(b *strings.Builder, msg grid.UserMessage) {
	fmt.Fprintf(b, `<div class="alert" role="alert"><strong>%s</strong>`, templ.EscapeString(msg.Message))
	if msg.Action != "" {
		fmt.Fprintf(b, ` <span>%s</span>`, templ.EscapeString(msg.Action))
	}
	fmt.Fprintf(b, ` <code>%s</code></div>`, templ.EscapeString(msg.Code))
}

func writeGrid(b *strings.Builder, st grid.State) {
	writable := make(map[string]bool, len(st.Writable))
	for _, c := range st.Writable {
		writable[c] = true
	}

	fmt.Fprintf(b, `<table id="grid" data-table="%s"><thead><tr>`, templ.EscapeString(st.Table))
	for _, col := range st.Display {
		fmt.Fprintf(b, `<th>%s</th>`, templ.EscapeString(col))
	}
	b.WriteString(`<th></th></tr></thead><tbody>`)

	for _, row := range st.Rows {
		id := rowIdentity(st.Identity, row)
		fmt.Fprintf(b, `<tr data-id="%s">`, templ.EscapeString(id))
		for _, col := range st.Display {
			class := "ro"
			if writable[col] && id != "" {
				class = "rw"
			}
			fmt.Fprintf(b, `<td class="%s" data-col="%s">%s</td>`,
				class, templ.EscapeString(col), templ.EscapeString(grid.DisplayValue(row[col])))
		}
		if id != "" {
			b.WriteString(`<td><button class="del">Delete</button></td>`)
		} else {
			b.WriteString(`<td></td>`)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table>`)
}

func writeCreateForm(b *strings.Builder, st grid.State) {
	if len(st.Writable) == 0 {
		return
	}
	b.WriteString(`<form id="create"><h3>New record</h3>`)
	for _, col := range st.Writable {
		name := templ.EscapeString(col)
		fmt.Fprintf(b, `<label>%s <input name="%s"></label>`, name, name)
	}
	b.WriteString(`<button type="submit">Create</button></form>`)
}

// rowIdentity resolves the row's identity from the table's identity columns.
func rowIdentity(identity []string, row store.Row) string {
	for _, key := range identity {
		if id, ok := store.FormatIdentity(row[key]); ok {
			return id
		}
	}
	return ""
}

const pageCSS = `body{font-family:system-ui,sans-serif;margin:0;display:flex}
nav{width:12rem;padding:1rem;background:#f3f4f6;min-height:100vh}
nav a{display:block;padding:.3rem .5rem;color:#111;text-decoration:none;border-radius:4px}
nav a.active{background:#2563eb;color:#fff}
main{flex:1;padding:1rem}
table{border-collapse:collapse;width:100%}
th,td{border:1px solid #e5e7eb;padding:.3rem .5rem;text-align:left}
td.rw{cursor:text}td.ro{color:#6b7280}
.alert{background:#fee2e2;border:1px solid #ef4444;padding:.5rem;margin-bottom:1rem}
.busy{opacity:.6;pointer-events:none}
form#create{margin-top:1rem}form#create label{margin-right:.5rem}`

const pageJS = `(function(){
var grid=document.getElementById('grid');
function api(path,method,body){
  return fetch('/api/grid'+path,{method:method,headers:{'Content-Type':'application/json','Accept':'application/json'},body:body?JSON.stringify(body):undefined})
  .then(function(r){return r.json().then(function(j){if(!r.ok){throw j}return j})});
}
function alertMsg(e){
  var box=document.getElementById('alert');box.textContent='';
  if(!e||!e.message)return;
  var d=document.createElement('div');d.className='alert';d.textContent=e.message+' ('+e.code+') '+(e.action||'');box.appendChild(d);
}
function display(v){return v===null||v===undefined?'null':String(v)}
function render(st){
  if(!grid||st.table!==grid.dataset.table){return}
  grid.classList.toggle('busy',st.busy);
  if(st.edit)return;
  var w={};(st.writable||[]).forEach(function(c){w[c]=true});
  var body=grid.tBodies[0];body.textContent='';
  (st.rows||[]).forEach(function(row){
    var id=null;(st.identity||[]).some(function(k){if(row[k]!==undefined&&row[k]!==null){id=row[k];return true}return false});
    var tr=document.createElement('tr');if(id!==undefined&&id!==null)tr.dataset.id=String(id);
    st.display.forEach(function(c){var td=document.createElement('td');td.dataset.col=c;td.className=w[c]&&tr.dataset.id?'rw':'ro';td.textContent=display(row[c]);tr.appendChild(td)});
    var td=document.createElement('td');if(tr.dataset.id){var b=document.createElement('button');b.className='del';b.textContent='Delete';td.appendChild(b)}tr.appendChild(td);
    body.appendChild(tr);
  });
}
if(grid){
  grid.addEventListener('dblclick',function(ev){
    var td=ev.target.closest('td.rw');if(!td)return;
    var id=td.parentNode.dataset.id,col=td.dataset.col;
    api('/edit','POST',{identity:id,column:col}).then(function(edit){
      var input=document.createElement('input');input.value=edit.original===null||edit.original===undefined?'':String(edit.original);
      td.textContent='';td.appendChild(input);input.focus();
      var done=false;
      function finish(p){if(done)return;done=true;p.then(function(st){alertMsg(null);render(st)},function(e){alertMsg(e);api('/state','GET').then(render)})}
      input.addEventListener('keydown',function(k){
        if(k.key==='Enter'){finish(api('/edit/confirm','POST',{value:input.value}))}
        if(k.key==='Escape'){finish(api('/edit/cancel','POST'))}
      });
      input.addEventListener('blur',function(){finish(api('/edit/cancel','POST'))});
    },alertMsg);
  });
  grid.addEventListener('click',function(ev){
    if(!ev.target.classList.contains('del'))return;
    var id=ev.target.closest('tr').dataset.id;
    api('/rows/'+encodeURIComponent(id)+'/delete','POST',{table:grid.dataset.table}).then(function(c){
      var path=window.confirm(c.prompt)?'/delete/confirm':'/delete/cancel';
      return api(path,'POST',{token:c.token});
    }).then(function(st){alertMsg(null);render(st)},alertMsg);
  });
  var form=document.getElementById('create');
  if(form){form.addEventListener('submit',function(ev){
    ev.preventDefault();var fields={};
    Array.prototype.forEach.call(form.elements,function(el){if(el.name&&el.value!=='')fields[el.name]=el.value});
    api('/rows','POST',{table:grid.dataset.table,fields:fields}).then(function(res){form.reset();alertMsg(null);render(res.state)},alertMsg);
  })}
  var es=new EventSource('/api/grid/events');
  es.addEventListener('state',function(m){render(JSON.parse(m.data))});
}
})();`
